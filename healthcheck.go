package main

import (
	"net/http"

	"github.com/Financial-Times/mmif-rw-neo4j/store"

	fthealth "github.com/Financial-Times/go-fthealth/v1_1"
	"github.com/Financial-Times/kafka-client-go/kafka"
	"github.com/Financial-Times/service-status-go/gtg"
)

type healthCheckHandler struct {
	mmifService store.Service
	consumer    kafka.Consumer
	appName     string
}

func (h healthCheckHandler) Health() func(w http.ResponseWriter, r *http.Request) {
	checks := []fthealth.Check{h.writerCheck()}
	if h.consumer != nil {
		checks = append(checks, h.readQueueCheck())
	}
	name := h.appName
	if name == "" {
		name = "mmif-rw"
	}
	hc := fthealth.HealthCheck{
		SystemCode:  name,
		Name:        name,
		Description: "Checks if all the dependent services are reachable and healthy.",
		Checks:      checks,
	}
	return fthealth.Handler(hc)
}

func (h healthCheckHandler) GTG() gtg.Status {
	checks := []gtg.StatusChecker{
		func() gtg.Status {
			return gtgCheck(h.Checker)
		},
	}
	if h.consumer != nil {
		checks = append(checks, func() gtg.Status {
			return gtgCheck(h.checkKafkaConnectivity)
		})
	}
	return gtg.FailFastParallelCheck(checks)()
}

func (h healthCheckHandler) readQueueCheck() fthealth.Check {
	return fthealth.Check{
		ID:               "read-message-queue-reachable",
		Name:             "Read Message Queue Reachable",
		Severity:         1,
		BusinessImpact:   "MMIF files can't be read from queue. Analysis results will not reach the graph.",
		TechnicalSummary: "Read message queue is not reachable/healthy",
		PanicGuide:       "https://dewey.ft.com/",
		Checker:          h.checkKafkaConnectivity,
	}
}

func (h healthCheckHandler) writerCheck() fthealth.Check {
	return fthealth.Check{
		ID:               "write-mmif-datastore-reachable",
		Name:             "Write MMIF Data Store Reachable",
		Severity:         1,
		BusinessImpact:   "Unable to respond to MMIF API requests",
		TechnicalSummary: "Cannot connect to the Neo4j instance holding MMIF files",
		PanicGuide:       "https://dewey.ft.com/",
		Checker:          h.Checker,
	}
}

func (h healthCheckHandler) checkKafkaConnectivity() (string, error) {
	if err := h.consumer.ConnectivityCheck(); err != nil {
		return "Error connecting with Kafka", err
	}
	return "Successfully connected to Kafka", nil
}

func (h healthCheckHandler) Checker() (string, error) {
	if err := h.mmifService.Check(); err != nil {
		return "Error connecting to neo4j", err
	}
	return "Connectivity to neo4j is ok", nil
}

func gtgCheck(handler func() (string, error)) gtg.Status {
	if _, err := handler(); err != nil {
		return gtg.Status{GoodToGo: false, Message: err.Error()}
	}
	return gtg.Status{GoodToGo: true}
}
