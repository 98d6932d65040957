package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Financial-Times/mmif-rw-neo4j/forwarder"
	"github.com/Financial-Times/mmif-rw-neo4j/mmif"
	"github.com/Financial-Times/mmif-rw-neo4j/store"

	logger "github.com/Financial-Times/go-logger/v2"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	knownUUID    = "12345"
	pipeline     = "video-ocr"
	originSystem = "http://cmdb.ft.com/systems/clams-east"
)

type HttpHandlerTestSuite struct {
	suite.Suite
	body               []byte
	doc                *mmif.Mmif
	mmifService        *mockMmifService
	forwarder          *forwarder.MockForwarder
	healthCheckHandler healthCheckHandler
	originMap          map[string]string
	pipelineMap        map[string]string
	tid                string
	messageType        string
	log                *logger.UPPLogger
}

func (suite *HttpHandlerTestSuite) SetupTest() {
	suite.log = logger.NewUPPInfoLogger("mmif-rw")
	message, err := ioutil.ReadFile("exampleMmifMessage.json")
	require.NoError(suite.T(), err, "Unexpected error")

	msg := queueMessage{}
	require.NoError(suite.T(), json.Unmarshal(message, &msg))
	suite.body = msg.Mmif
	suite.doc, err = mmif.Parse(suite.body)
	require.NoError(suite.T(), err, "Unexpected error")

	suite.mmifService = new(mockMmifService)
	suite.forwarder = new(forwarder.MockForwarder)
	suite.tid = "tid_sample"

	suite.healthCheckHandler = healthCheckHandler{}
	suite.originMap, suite.pipelineMap, suite.messageType, err = readConfigMap("mmif-config.json")
	require.NoError(suite.T(), err, "Unexpected error")
}

func TestHttpHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HttpHandlerTestSuite))
}

func (suite *HttpHandlerTestSuite) handler() *httpHandler {
	return &httpHandler{
		mmifService: suite.mmifService,
		forwarder:   suite.forwarder,
		originMap:   suite.originMap,
		pipelineMap: suite.pipelineMap,
		messageType: suite.messageType,
		validate:    true,
		log:         suite.log,
	}
}

func (suite *HttpHandlerTestSuite) serve(h *httpHandler, request *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router(h, &suite.healthCheckHandler, suite.log).ServeHTTP(rec, request)
	return rec
}

func (suite *HttpHandlerTestSuite) sameMmif() interface{} {
	return mock.MatchedBy(func(doc *mmif.Mmif) bool { return suite.doc.Equal(doc) })
}

func (suite *HttpHandlerTestSuite) putRequest(body []byte) *http.Request {
	request := newRequest("PUT", fmt.Sprintf("/content/%s/mmif/%s", knownUUID, pipeline), "application/json", body)
	request.Header.Add("X-Request-Id", suite.tid)
	return request
}

func (suite *HttpHandlerTestSuite) TestPutHandler_Success() {
	suite.mmifService.On("Write", knownUUID, pipeline, suite.tid, suite.sameMmif()).Return(nil)
	suite.forwarder.On("SendMessage", suite.tid, originSystem, mock.Anything, knownUUID, suite.sameMmif()).Return(nil).Once()

	rec := suite.serve(suite.handler(), suite.putRequest(suite.body))
	assert.Equal(suite.T(), http.StatusCreated, rec.Code)
	assert.JSONEq(suite.T(), message("MMIF for content 12345 created"), rec.Body.String(), "Wrong body")
	suite.mmifService.AssertExpectations(suite.T())
	suite.forwarder.AssertExpectations(suite.T())
}

func (suite *HttpHandlerTestSuite) TestPutHandler_WithoutForwarder() {
	suite.mmifService.On("Write", knownUUID, pipeline, suite.tid, suite.sameMmif()).Return(nil)
	h := suite.handler()
	h.forwarder = nil

	rec := suite.serve(h, suite.putRequest(suite.body))
	assert.Equal(suite.T(), http.StatusCreated, rec.Code)
	suite.forwarder.AssertNumberOfCalls(suite.T(), "SendMessage", 0)
}

func (suite *HttpHandlerTestSuite) TestPutHandler_RejectedBodies() {
	tests := []struct {
		name       string
		body       string
		status     int
		violations bool
	}{
		{
			name:   "malformed JSON",
			body:   `{"metadata": `,
			status: http.StatusBadRequest,
		},
		{
			name:   "not an object",
			body:   `["views"]`,
			status: http.StatusBadRequest,
		},
		{
			name:       "schema violation",
			body:       `{"metadata": {"mmif": "http://mmif.clams.ai/0.2.1"}, "documents": []}`,
			status:     http.StatusBadRequest,
			violations: true,
		},
		{
			name:   "other MMIF version",
			body:   `{"metadata": {"mmif": "http://mmif.clams.ai/0.1.0"}, "documents": [], "views": []}`,
			status: http.StatusBadRequest,
		},
		{
			name: "duplicate document ids",
			body: `{"metadata": {"mmif": "http://mmif.clams.ai/0.2.1"}, "views": [], "documents": [
				{"@type": "TextDocument", "properties": {"id": "m1", "location": "/a.txt"}},
				{"@type": "TextDocument", "properties": {"id": "m1", "location": "/b.txt"}}
			]}`,
			status: http.StatusConflict,
		},
	}
	for _, test := range tests {
		suite.T().Run(test.name, func(t *testing.T) {
			rec := suite.serve(suite.handler(), suite.putRequest([]byte(test.body)))
			assert.Equal(t, test.status, rec.Code, rec.Body.String())

			resp := map[string]interface{}{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["message"])
			_, hasViolations := resp["violations"]
			assert.Equal(t, test.violations, hasViolations)
		})
	}
	suite.mmifService.AssertNumberOfCalls(suite.T(), "Write", 0)
}

func (suite *HttpHandlerTestSuite) TestPutHandler_SkipsSchemaWhenDisabled() {
	body := []byte(`{"metadata": {"mmif": "http://mmif.clams.ai/0.2.1"}, "views": [], "documents": [
		{"@type": "TextDocument", "properties": {"id": "m1", "location": "/a.txt", "text": {"@value": "a"}}}
	]}`)
	suite.mmifService.On("Write", knownUUID, pipeline, suite.tid, mock.AnythingOfType("*mmif.Mmif")).Return(nil)
	suite.forwarder.On("SendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	h := suite.handler()
	rec := suite.serve(h, suite.putRequest(body))
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)

	h.validate = false
	rec = suite.serve(h, suite.putRequest(body))
	assert.Equal(suite.T(), http.StatusCreated, rec.Code)
}

func (suite *HttpHandlerTestSuite) TestPutHandler_NotJson() {
	request := newRequest("PUT", fmt.Sprintf("/content/%s/mmif/%s", knownUUID, pipeline), "text/html", suite.body)
	rec := suite.serve(suite.handler(), request)
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
}

func (suite *HttpHandlerTestSuite) TestPutHandler_UnknownPipeline() {
	request := newRequest("PUT", fmt.Sprintf("/content/%s/mmif/%s", knownUUID, "unknown"), "application/json", suite.body)
	rec := suite.serve(suite.handler(), request)
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
	assert.JSONEq(suite.T(), message("pipeline not supported by this application"), rec.Body.String())
}

func (suite *HttpHandlerTestSuite) TestPutHandler_WriteFailed() {
	suite.mmifService.On("Write", knownUUID, pipeline, suite.tid, suite.sameMmif()).Return(errors.New("Write failed"))
	rec := suite.serve(suite.handler(), suite.putRequest(suite.body))
	assert.Equal(suite.T(), http.StatusServiceUnavailable, rec.Code)
	suite.forwarder.AssertNumberOfCalls(suite.T(), "SendMessage", 0)
}

func (suite *HttpHandlerTestSuite) TestPutHandler_StoreValidationError() {
	suite.mmifService.On("Write", knownUUID, pipeline, suite.tid, suite.sameMmif()).Return(store.ValidationError{Msg: "Content uuid is required"})
	rec := suite.serve(suite.handler(), suite.putRequest(suite.body))
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
}

func (suite *HttpHandlerTestSuite) TestPutHandler_ForwardingFailed() {
	suite.mmifService.On("Write", knownUUID, pipeline, suite.tid, suite.sameMmif()).Return(nil)
	suite.forwarder.On("SendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("forwarding failed"))
	rec := suite.serve(suite.handler(), suite.putRequest(suite.body))
	assert.Equal(suite.T(), http.StatusInternalServerError, rec.Code)
	suite.forwarder.AssertExpectations(suite.T())
}

func (suite *HttpHandlerTestSuite) TestGetHandler_Success() {
	suite.mmifService.On("Read", knownUUID, mock.Anything, pipeline).Return(suite.doc, true, nil)
	request := newRequest("GET", fmt.Sprintf("/content/%s/mmif/%s", knownUUID, pipeline), "application/json", nil)
	rec := suite.serve(suite.handler(), request)
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.JSONEq(suite.T(), string(suite.body), rec.Body.String(), "Wrong body")
}

func (suite *HttpHandlerTestSuite) TestGetHandler_NotFound() {
	suite.mmifService.On("Read", knownUUID, mock.Anything, pipeline).Return(nil, false, nil)
	request := newRequest("GET", fmt.Sprintf("/content/%s/mmif/%s", knownUUID, pipeline), "application/json", nil)
	rec := suite.serve(suite.handler(), request)
	assert.Equal(suite.T(), http.StatusNotFound, rec.Code)
}

func (suite *HttpHandlerTestSuite) TestGetHandler_ReadError() {
	suite.mmifService.On("Read", knownUUID, mock.Anything, pipeline).Return(nil, false, errors.New("Read error"))
	request := newRequest("GET", fmt.Sprintf("/content/%s/mmif/%s", knownUUID, pipeline), "application/json", nil)
	rec := suite.serve(suite.handler(), request)
	assert.Equal(suite.T(), http.StatusServiceUnavailable, rec.Code)
}

func (suite *HttpHandlerTestSuite) TestGetElementHandler() {
	suite.mmifService.On("Read", knownUUID, mock.Anything, pipeline).Return(suite.doc, true, nil)

	bb1, err := suite.doc.Lookup("v1:bb1")
	require.NoError(suite.T(), err)
	bb1JSON, err := bb1.Serialize(false)
	require.NoError(suite.T(), err)

	tests := []struct {
		id     string
		status int
		body   string
	}{
		{id: "v1:bb1", status: http.StatusOK, body: bb1JSON},
		{id: "m1", status: http.StatusOK},
		{id: "v1", status: http.StatusOK},
		{id: "v9", status: http.StatusNotFound},
		{id: "v1:nope", status: http.StatusNotFound},
	}
	for _, test := range tests {
		suite.T().Run(test.id, func(t *testing.T) {
			request := newRequest("GET", fmt.Sprintf("/content/%s/mmif/%s/%s", knownUUID, pipeline, test.id), "application/json", nil)
			rec := suite.serve(suite.handler(), request)
			assert.Equal(t, test.status, rec.Code, rec.Body.String())
			if test.body != "" {
				assert.JSONEq(t, test.body, rec.Body.String())
			}
		})
	}
}

func (suite *HttpHandlerTestSuite) TestGetElementHandler_Ambiguous() {
	doc := mmif.New()
	require.NoError(suite.T(), doc.AddDocument(mmif.NewDocument("TextDocument", "v1"), false))
	require.NoError(suite.T(), doc.AddView(mmif.NewView("v1"), false))
	suite.mmifService.On("Read", knownUUID, mock.Anything, pipeline).Return(doc, true, nil)

	request := newRequest("GET", fmt.Sprintf("/content/%s/mmif/%s/v1", knownUUID, pipeline), "application/json", nil)
	rec := suite.serve(suite.handler(), request)
	assert.Equal(suite.T(), http.StatusConflict, rec.Code)
}

func (suite *HttpHandlerTestSuite) TestDeleteHandler_Success() {
	suite.mmifService.On("Delete", knownUUID, mock.Anything, pipeline).Return(true, nil)
	request := newRequest("DELETE", fmt.Sprintf("/content/%s/mmif/%s", knownUUID, pipeline), "application/json", nil)
	rec := suite.serve(suite.handler(), request)
	assert.Equal(suite.T(), http.StatusNoContent, rec.Code)
}

func (suite *HttpHandlerTestSuite) TestDeleteHandler_NotFound() {
	suite.mmifService.On("Delete", knownUUID, mock.Anything, pipeline).Return(false, nil)
	request := newRequest("DELETE", fmt.Sprintf("/content/%s/mmif/%s", knownUUID, pipeline), "application/json", nil)
	rec := suite.serve(suite.handler(), request)
	assert.Equal(suite.T(), http.StatusNotFound, rec.Code)
}

func (suite *HttpHandlerTestSuite) TestDeleteHandler_DeleteError() {
	suite.mmifService.On("Delete", knownUUID, mock.Anything, pipeline).Return(false, errors.New("Delete error"))
	request := newRequest("DELETE", fmt.Sprintf("/content/%s/mmif/%s", knownUUID, pipeline), "application/json", nil)
	rec := suite.serve(suite.handler(), request)
	assert.Equal(suite.T(), http.StatusServiceUnavailable, rec.Code)
}

func (suite *HttpHandlerTestSuite) TestCount_Success() {
	suite.mmifService.On("Count", pipeline).Return(10, nil)
	request := newRequest("GET", fmt.Sprintf("/content/mmif/%s/__count", pipeline), "application/json", nil)
	rec := suite.serve(suite.handler(), request)
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.Equal(suite.T(), "10\n", rec.Body.String())
}

func (suite *HttpHandlerTestSuite) TestCount_CountError() {
	suite.mmifService.On("Count", pipeline).Return(0, errors.New("Count error"))
	request := newRequest("GET", fmt.Sprintf("/content/mmif/%s/__count", pipeline), "application/json", nil)
	rec := suite.serve(suite.handler(), request)
	assert.Equal(suite.T(), http.StatusServiceUnavailable, rec.Code)
}

func (suite *HttpHandlerTestSuite) TestValidateHandler() {
	request := newRequest("POST", "/mmif/__validate", "application/json", suite.body)
	rec := suite.serve(suite.handler(), request)
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	assert.JSONEq(suite.T(), message("MMIF is valid"), rec.Body.String())

	request = newRequest("POST", "/mmif/__validate", "application/json", []byte(`{"metadata": {}}`))
	rec = suite.serve(suite.handler(), request)
	assert.Equal(suite.T(), http.StatusBadRequest, rec.Code)
	resp := struct {
		Message    string   `json:"message"`
		Violations []string `json:"violations"`
	}{}
	require.NoError(suite.T(), json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(suite.T(), resp.Violations)
	suite.mmifService.AssertNumberOfCalls(suite.T(), "Write", 0)
}

func TestStatusForError(t *testing.T) {
	_, parseErr := mmif.Parse("{")
	_, lookupErr := mmif.New().Lookup("v1")
	frozen := mmif.New()
	frozen.Documents().Freeze()
	immutableErr := frozen.AddDocument(mmif.NewDocument("TextDocument", "m1"), false)

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"parse", parseErr, http.StatusBadRequest},
		{"validation", mmif.Validate(`{}`), http.StatusBadRequest},
		{"not found", lookupErr, http.StatusNotFound},
		{"immutable", immutableErr, http.StatusConflict},
		{"wrapped", errors.Wrap(mmif.ErrKeyConflict, "writing"), http.StatusConflict},
		{"other", errors.New("boom"), http.StatusServiceUnavailable},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Error(t, test.err)
			assert.Equal(t, test.expected, statusForError(test.err, http.StatusServiceUnavailable))
		})
	}
}

func newRequest(method, url, contentType string, body []byte) *http.Request {
	req, err := http.NewRequest(method, url, bytes.NewBuffer(body))
	if err != nil {
		panic(err)
	}
	req.Header.Add("Content-Type", contentType)
	return req
}

func message(errMsg string) string {
	return fmt.Sprintf("{\"message\": \"%s\"}\n", errMsg)
}
