package api

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"lifebook-backend/internal/reminder/worker"

	"github.com/gin-gonic/gin"
)

// CheckStatus is the last check-and-notify run as reported to clients
type CheckStatus struct {
	Result    worker.Result `json:"result"`
	Error     string        `json:"error,omitempty"`
	At        time.Time     `json:"at"`
	Completed int           `json:"completed"`
	Skipped   int           `json:"skipped"`
}

var (
	checkStatus     *CheckStatus
	checkStatusLock sync.RWMutex
	checkCompleted  int
	checkSkipped    int
)

// RecordCheck is installed as the worker observer
func RecordCheck(res worker.Result, err error) {
	checkStatusLock.Lock()
	defer checkStatusLock.Unlock()

	if errors.Is(err, worker.ErrCheckInProgress) {
		checkSkipped++
		if checkStatus != nil {
			checkStatus.Skipped = checkSkipped
		}
		return
	}

	checkCompleted++
	status := &CheckStatus{
		Result:    res,
		At:        time.Now(),
		Completed: checkCompleted,
		Skipped:   checkSkipped,
	}
	if err != nil {
		status.Error = err.Error()
	}
	checkStatus = status
}

// StateReporter exposes the worker lifecycle state
type StateReporter interface {
	State() worker.State
}

// GetWorkerStatus returns the worker state and the last check
// GET /api/worker/status
func GetWorkerStatus(w StateReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		checkStatusLock.RLock()
		defer checkStatusLock.RUnlock()

		body := gin.H{"state": w.State().String()}
		if checkStatus != nil {
			body["last_check"] = checkStatus
		}
		c.JSON(http.StatusOK, body)
	}
}
