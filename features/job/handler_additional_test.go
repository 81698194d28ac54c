package job_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"stocktake/backend/features/job"
	"stocktake/backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestHandler_List_ServiceError(t *testing.T) {
	mockRepo := new(MockRepo)
	svc := job.NewService(mockRepo, nil)
	handler := job.NewHandler(svc)

	mockRepo.On("List", mock.Anything).Return(nil, errors.New("database error"))

	req := httptest.NewRequest("GET", "/jobs/failed", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Result().StatusCode)
	mockRepo.AssertExpectations(t)
}

func TestHandler_List_EmptyList(t *testing.T) {
	mockRepo := new(MockRepo)
	svc := job.NewService(mockRepo, nil)
	handler := job.NewHandler(svc)

	// nil slice must still serialize as []
	mockRepo.On("List", mock.Anything).Return(nil, nil)

	req := httptest.NewRequest("GET", "/jobs/failed", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestHandler_Retry_ServiceError_Get(t *testing.T) {
	mockRepo := new(MockRepo)
	mockPub := new(MockPublisher)
	svc := job.NewService(mockRepo, mockPub)
	handler := job.NewHandler(svc)

	jobID := "error-job"
	mockRepo.On("Get", mock.Anything, jobID).Return(nil, errors.New("db error"))

	req := httptest.NewRequest("POST", "/jobs/"+jobID+"/retry", nil)
	req.SetPathValue("id", jobID)
	w := httptest.NewRecorder()

	handler.Retry(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Result().StatusCode)
	mockRepo.AssertExpectations(t)
}

func TestHandler_Retry_ServiceError_Publish(t *testing.T) {
	mockRepo := new(MockRepo)
	mockPub := new(MockPublisher)
	svc := job.NewService(mockRepo, mockPub)
	handler := job.NewHandler(svc)

	jobID := "publish-fail-job"
	j := &job.Job{
		ID:      jobID,
		Payload: []byte(`{"resource_id": "inventory-data"}`),
	}

	mockRepo.On("Get", mock.Anything, jobID).Return(j, nil)
	mockPub.On("Publish", config.TopicIngestTask, mock.Anything).Return(errors.New("nsq error"))

	req := httptest.NewRequest("POST", "/jobs/"+jobID+"/retry", nil)
	req.SetPathValue("id", jobID)
	w := httptest.NewRecorder()

	handler.Retry(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Result().StatusCode)
	mockRepo.AssertExpectations(t)
	mockPub.AssertExpectations(t)
}
