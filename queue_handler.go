package main

import (
	"encoding/json"

	"github.com/Financial-Times/mmif-rw-neo4j/forwarder"
	"github.com/Financial-Times/mmif-rw-neo4j/store"

	logger "github.com/Financial-Times/go-logger/v2"
	"github.com/Financial-Times/kafka-client-go/kafka"
	transactionidutils "github.com/Financial-Times/transactionid-utils-go"

	"github.com/pkg/errors"
)

type queueMessage struct {
	UUID string          `json:"uuid"`
	Mmif json.RawMessage `json:"mmif"`
}

type queueHandler struct {
	mmifService store.Service
	consumer    kafka.Consumer
	forwarder   forwarder.QueueForwarder
	originMap   map[string]string
	pipelineMap map[string]string
	messageType string
	validate    bool
	log         *logger.UPPLogger
}

func (qh *queueHandler) Ingest() {
	qh.consumer.StartListening(func(message kafka.FTMessage) error {
		tid, found := message.Headers[transactionidutils.TransactionIDHeader]
		if !found {
			return errors.New("Missing transaction id from message")
		}

		originSystem, found := message.Headers["Origin-System-Id"]
		if !found {
			return errors.New("Missing Origin-System-Id header from message")
		}

		pipeline, version, err := qh.getSourceFromHeader(originSystem)
		if err != nil {
			qh.log.WithTransactionID(tid).WithError(err).Warn("Skipping message")
			return err
		}

		msg := new(queueMessage)
		err = json.Unmarshal([]byte(message.Body), msg)
		if err != nil {
			return errors.Errorf("Cannot process received message %s", tid)
		}

		doc, err := parseForPipeline(msg.Mmif, version, qh.validate)
		if err != nil {
			qh.log.WithTransactionID(tid).WithUUID(msg.UUID).WithError(err).Error("Received MMIF is not valid")
			return errors.Wrapf(err, "Invalid MMIF in message with tid=%s", tid)
		}

		err = qh.mmifService.Write(msg.UUID, pipeline, tid, doc)
		if err != nil {
			qh.log.WithMonitoringEvent("SaveNeo4j", tid, qh.messageType).WithUUID(msg.UUID).WithError(err).Error("Cannot write to Neo4j")
			return errors.Wrapf(err, "Failed to write message with tid=%s and uuid=%s", tid, msg.UUID)
		}

		qh.log.WithMonitoringEvent("SaveNeo4j", tid, qh.messageType).WithUUID(msg.UUID).Infof("%s successfully written in Neo4j", qh.messageType)

		if qh.forwarder != nil {
			qh.log.WithTransactionID(tid).WithUUID(msg.UUID).Debug("Forwarding message to the next queue")
			return qh.forwarder.SendMessage(tid, originSystem, message.Headers, msg.UUID, doc)
		}
		return nil
	})
}

func (qh *queueHandler) getSourceFromHeader(originSystem string) (string, string, error) {
	pipeline, found := qh.originMap[originSystem]
	if !found {
		return "", "", errors.Errorf("Pipeline not found for origin system id: %s", originSystem)
	}

	version, found := qh.pipelineMap[pipeline]
	if !found {
		return "", "", errors.Errorf("MMIF version not found for origin system id: %s and pipeline: %s", originSystem, pipeline)
	}
	return pipeline, version, nil
}
