package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/Financial-Times/mmif-rw-neo4j/forwarder"
	"github.com/Financial-Times/mmif-rw-neo4j/mmif"
	"github.com/Financial-Times/mmif-rw-neo4j/store"

	logger "github.com/Financial-Times/go-logger/v2"
	transactionidutils "github.com/Financial-Times/transactionid-utils-go"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

const (
	pipelinePropertyName = "pipeline"
)

type httpHandler struct {
	mmifService store.Service
	forwarder   forwarder.QueueForwarder
	originMap   map[string]string
	pipelineMap map[string]string
	messageType string
	validate    bool
	log         *logger.UPPLogger
}

// GetMmif returns the MMIF file stored for a piece of content, in the same
// shape it was written with.
func (hh *httpHandler) GetMmif(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	uuid, pipeline, ok := hh.pathParams(w, r)
	if !ok {
		return
	}

	tid := transactionidutils.GetTransactionIDFromRequest(r)
	doc, found, err := hh.mmifService.Read(uuid, tid, pipeline)
	if err != nil {
		hh.log.WithUUID(uuid).WithTransactionID(tid).WithError(err).Error("failed getting MMIF")
		writeJSONError(w, fmt.Sprintf("Error getting MMIF (%v)", err), http.StatusServiceUnavailable)
		return
	}
	if !found {
		writeJSONError(w, fmt.Sprintf("No MMIF found for content with uuid %s.", uuid), http.StatusNotFound)
		return
	}
	writeSerialized(w, doc)
}

// GetElement resolves a document, view or "view:annotation" id inside the
// stored MMIF file.
func (hh *httpHandler) GetElement(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	uuid, pipeline, ok := hh.pathParams(w, r)
	if !ok {
		return
	}
	elementID := mux.Vars(r)["elementId"]

	tid := transactionidutils.GetTransactionIDFromRequest(r)
	doc, found, err := hh.mmifService.Read(uuid, tid, pipeline)
	if err != nil {
		hh.log.WithUUID(uuid).WithTransactionID(tid).WithError(err).Error("failed getting MMIF")
		writeJSONError(w, fmt.Sprintf("Error getting MMIF (%v)", err), http.StatusServiceUnavailable)
		return
	}
	if !found {
		writeJSONError(w, fmt.Sprintf("No MMIF found for content with uuid %s.", uuid), http.StatusNotFound)
		return
	}

	node, err := doc.Lookup(elementID)
	if err != nil {
		writeJSONError(w, err.Error(), statusForError(err, http.StatusBadRequest))
		return
	}
	writeSerialized(w, node)
}

// DeleteMmif removes the MMIF file of a pipeline for a piece of content.
func (hh *httpHandler) DeleteMmif(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	uuid, pipeline, ok := hh.pathParams(w, r)
	if !ok {
		return
	}

	tid := transactionidutils.GetTransactionIDFromRequest(r)
	found, err := hh.mmifService.Delete(uuid, tid, pipeline)
	if err != nil {
		hh.log.WithUUID(uuid).WithTransactionID(tid).WithError(err).Error("failed deleting MMIF")
		writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if !found {
		writeJSONError(w, fmt.Sprintf("No MMIF found for content with uuid %s.", uuid), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (hh *httpHandler) CountMmif(w http.ResponseWriter, r *http.Request) {
	pipeline := mux.Vars(r)[pipelinePropertyName]
	if _, ok := hh.pipelineMap[pipeline]; !ok {
		writeJSONError(w, "pipeline not supported by this application", http.StatusBadRequest)
		return
	}

	count, err := hh.mmifService.Count(pipeline)

	w.Header().Add("Content-Type", "application/json")

	if err != nil {
		writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err := json.NewEncoder(w).Encode(count); err != nil {
		writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
}

// PutMmif validates, stores and forwards the MMIF file of a pipeline.
func (hh *httpHandler) PutMmif(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	if err := isContentTypeJSON(r); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	uuid, pipeline, ok := hh.pathParams(w, r)
	if !ok {
		return
	}

	originSystem := originForPipeline(hh.originMap, pipeline)
	if originSystem == "" {
		writeJSONError(w, "No Origin-System-Id could be deduced from the pipeline parameter", http.StatusBadRequest)
		return
	}

	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, fmt.Sprintf("Error (%v) reading MMIF request", err), http.StatusBadRequest)
		return
	}

	tid := transactionidutils.GetTransactionIDFromRequest(r)
	doc, err := parseForPipeline(body, hh.pipelineMap[pipeline], hh.validate)
	if err != nil {
		hh.log.WithUUID(uuid).WithTransactionID(tid).WithError(err).Warn("rejected MMIF")
		writeViolations(w, fmt.Sprintf("Error (%v) parsing MMIF request", err), mmif.Violations(err), statusForError(err, http.StatusBadRequest))
		return
	}

	err = hh.mmifService.Write(uuid, pipeline, tid, doc)
	if err != nil {
		msg := fmt.Sprintf("Error creating MMIF (%v)", err)
		if _, ok := err.(store.ValidationError); ok {
			hh.log.WithUUID(uuid).WithTransactionID(tid).WithError(err).Error("invalid MMIF write")
			writeJSONError(w, msg, http.StatusBadRequest)
			return
		}
		hh.log.WithMonitoringEvent("SaveNeo4j", tid, hh.messageType).WithUUID(uuid).WithError(err).Error(msg)
		writeJSONError(w, msg, http.StatusServiceUnavailable)
		return
	}
	hh.log.WithMonitoringEvent("SaveNeo4j", tid, hh.messageType).WithUUID(uuid).Infof("%s successfully written in Neo4j", hh.messageType)

	if hh.forwarder != nil {
		hh.log.WithTransactionID(tid).WithUUID(uuid).Debug("Forwarding message to the next queue")
		err = hh.forwarder.SendMessage(tid, originSystem, nil, uuid, doc)
		if err != nil {
			msg := "Failed to forward message to queue"
			hh.log.WithTransactionID(tid).WithUUID(uuid).WithError(err).Error(msg)
			writeJSONError(w, msg, http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusCreated)
	w.Write(jsonMessage(fmt.Sprintf("MMIF for content %s created", uuid)))
}

// ValidateMmif checks a request body against the MMIF schema without
// storing anything.
func (hh *httpHandler) ValidateMmif(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, fmt.Sprintf("Error (%v) reading MMIF request", err), http.StatusBadRequest)
		return
	}
	if err := mmif.Validate(body); err != nil {
		writeViolations(w, err.Error(), mmif.Violations(err), statusForError(err, http.StatusBadRequest))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(jsonMessage("MMIF is valid"))
}

func (hh *httpHandler) pathParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	vars := mux.Vars(r)
	uuid := vars["uuid"]
	if uuid == "" {
		writeJSONError(w, "uuid required", http.StatusBadRequest)
		return "", "", false
	}

	pipeline := vars[pipelinePropertyName]
	if pipeline == "" {
		writeJSONError(w, "pipeline required", http.StatusBadRequest)
		return "", "", false
	} else if _, ok := hh.pipelineMap[pipeline]; !ok {
		writeJSONError(w, "pipeline not supported by this application", http.StatusBadRequest)
		return "", "", false
	}
	return uuid, pipeline, true
}

// parseForPipeline parses body and checks that it declares the MMIF version
// configured for the pipeline. An empty version accepts any.
func parseForPipeline(body []byte, version string, validate bool) (*mmif.Mmif, error) {
	doc, err := mmif.Parse(body, mmif.WithValidation(validate))
	if err != nil {
		return nil, err
	}
	if version != "" && doc.Metadata().Version() != version {
		return nil, errors.Wrapf(mmif.ErrValidation, "MMIF version %s does not match the pipeline version %s", doc.Metadata().Version(), version)
	}
	return doc, nil
}

func originForPipeline(originMap map[string]string, pipeline string) string {
	for k, v := range originMap {
		if v == pipeline {
			return k
		}
	}
	return ""
}

// statusForError maps MMIF error kinds onto HTTP statuses.
func statusForError(err error, fallback int) int {
	switch {
	case errors.Is(err, mmif.ErrParse),
		errors.Is(err, mmif.ErrValidation),
		errors.Is(err, mmif.ErrAdditionalProperty):
		return http.StatusBadRequest
	case errors.Is(err, mmif.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, mmif.ErrAmbiguousLookup),
		errors.Is(err, mmif.ErrImmutable),
		errors.Is(err, mmif.ErrKeyConflict):
		return http.StatusConflict
	}
	return fallback
}

func writeSerialized(w http.ResponseWriter, s mmif.Serializable) {
	out, err := s.Serialize(false)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(out))
}

func writeJSONError(w http.ResponseWriter, errorMsg string, statusCode int) {
	w.WriteHeader(statusCode)
	w.Write(jsonMessage(errorMsg))
}

func writeViolations(w http.ResponseWriter, errorMsg string, violations []string, statusCode int) {
	if len(violations) == 0 {
		writeJSONError(w, errorMsg, statusCode)
		return
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":    errorMsg,
		"violations": violations,
	})
}

func jsonMessage(msgText string) []byte {
	msg, _ := json.Marshal(map[string]string{"message": msgText})
	return msg
}

func isContentTypeJSON(r *http.Request) error {
	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "application/json") {
		return errors.New("Http Header 'Content-Type' is not 'application/json', this is a JSON API")
	}
	return nil
}
