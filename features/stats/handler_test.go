package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"stocktake/backend/internal/status"
)

type MockJobRepo struct{ mock.Mock }

func (m *MockJobRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockChunkCounter struct{ mock.Mock }

func (m *MockChunkCounter) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockStatusReader struct{ mock.Mock }

func (m *MockStatusReader) GetStatus(ctx context.Context) (*status.ProcessingStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*status.ProcessingStatus), args.Error(1)
}

func TestHandler_GetStats_Table(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(*MockJobRepo, *MockChunkCounter, *MockStatusReader)
		wantStatus int
		wantError  bool
		checkBody  func(*testing.T, map[string]interface{})
	}{
		{
			name: "Success",
			setupMocks: func(j *MockJobRepo, c *MockChunkCounter, s *MockStatusReader) {
				c.On("Count", mock.Anything).Return(100, nil)
				j.On("Count", mock.Anything).Return(5, nil)
				s.On("GetStatus", mock.Anything).Return(&status.ProcessingStatus{IsProcessing: true}, nil)
			},
			wantStatus: http.StatusOK,
			wantError:  false,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				assert.EqualValues(t, 100, data["chunks"])
				assert.EqualValues(t, 5, data["failed_jobs"])
				assert.Equal(t, true, data["is_processing"])
			},
		},
		{
			name: "ChunkCounter Error",
			setupMocks: func(j *MockJobRepo, c *MockChunkCounter, s *MockStatusReader) {
				c.On("Count", mock.Anything).Return(0, errors.New("weaviate error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
		{
			name: "JobRepo Error",
			setupMocks: func(j *MockJobRepo, c *MockChunkCounter, s *MockStatusReader) {
				c.On("Count", mock.Anything).Return(100, nil)
				j.On("Count", mock.Anything).Return(0, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
		{
			name: "Status Error",
			setupMocks: func(j *MockJobRepo, c *MockChunkCounter, s *MockStatusReader) {
				c.On("Count", mock.Anything).Return(100, nil)
				j.On("Count", mock.Anything).Return(5, nil)
				s.On("GetStatus", mock.Anything).Return(nil, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mJob := new(MockJobRepo)
			mChunks := new(MockChunkCounter)
			mStatus := new(MockStatusReader)

			tt.setupMocks(mJob, mChunks, mStatus)

			h := NewHandler(mJob, mChunks, mStatus)
			req := httptest.NewRequest("GET", "/stats", nil)
			w := httptest.NewRecorder()

			h.GetStats(w, req)

			resp := w.Result()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body map[string]interface{}
			err := json.NewDecoder(resp.Body).Decode(&body)
			assert.NoError(t, err)

			if tt.wantError {
				assert.Contains(t, body, "error")
				errMap := body["error"].(map[string]interface{})
				assert.Equal(t, "INTERNAL_ERROR", errMap["code"])
			} else {
				tt.checkBody(t, body)
			}
		})
	}
}
