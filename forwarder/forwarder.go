package forwarder

import (
	"encoding/json"
	"time"

	"github.com/Financial-Times/kafka-client-go/kafka"
	"github.com/Financial-Times/mmif-rw-neo4j/mmif"
	"github.com/pkg/errors"

	"github.com/twinj/uuid"
)

// QueueForwarder publishes an accepted MMIF file for downstream consumers.
type QueueForwarder interface {
	SendMessage(transactionID string, originSystem string, headers map[string]string, uuid string, doc *mmif.Mmif) error
}

// Forwarder writes MMIF files to Kafka. The file is wrapped in an object
// keyed by MessageType, next to the content uuid it describes.
type Forwarder struct {
	Producer    kafka.Producer
	MessageType string
}

// SendMessage publishes doc for content uuid. Headers of the incoming queue
// message are passed on unchanged; requests from the HTTP API pass nil and get
// a fresh set.
func (f Forwarder) SendMessage(transactionID string, originSystem string, headers map[string]string, uuid string, doc *mmif.Mmif) error {
	if headers == nil {
		headers = f.CreateHeaders(transactionID, originSystem)
	}
	body, err := f.marshalMmif(uuid, doc)
	if err != nil {
		return err
	}

	return f.Producer.SendMessage(kafka.NewFTMessage(headers, body))
}

// CreateHeaders builds the FT message headers of a content-mmif event.
func (f Forwarder) CreateHeaders(transactionID string, originSystem string) map[string]string {
	const dateFormat = "2006-01-02T03:04:05.000Z0700"
	return map[string]string{
		"X-Request-Id":      transactionID,
		"Message-Timestamp": time.Now().Format(dateFormat),
		"Message-Id":        uuid.NewV4().String(),
		"Message-Type":      "content-mmif",
		"Content-Type":      "application/json",
		"Origin-System-Id":  originSystem,
	}
}

func (f Forwarder) marshalMmif(uuid string, doc *mmif.Mmif) (string, error) {
	msg := map[string]interface{}{
		"uuid":        uuid,
		f.MessageType: doc,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", errors.Wrapf(err, "marshalling MMIF for content %s", uuid)
	}

	return string(body), nil
}
