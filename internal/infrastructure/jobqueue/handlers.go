package jobqueue

import (
	"errors"
	"strings"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/korfbal-live/internal/usecase"
)

// Handlers routes a job path to the handler that runs it.
type Handlers map[string]usecase.JobHandler

func (h Handlers) lookup(path string) (usecase.JobHandler, error) {
	path = normalizePath(path)
	handler, ok := h[path]
	if !ok {
		return nil, crerr.Newf("no job handler registered for path=%s", path)
	}
	return handler, nil
}

func normalizePath(path string) string {
	return "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
}

func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := sonic.Marshal(payload)
	if err != nil {
		return nil, crerr.Wrap(err, "marshal job payload")
	}
	return raw, nil
}

// coalesceKey groups jobs for the same task and match.
func coalesceKey(path string, raw []byte) string {
	var job struct {
		MatchDataID string `json:"match_data_id"`
	}
	_ = sonic.Unmarshal(raw, &job)
	return normalizePath(path) + "|" + job.MatchDataID
}

// isPermanent reports failures a redelivery cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, usecase.ErrInvalidInput) || errors.Is(err, usecase.ErrNotFound)
}
