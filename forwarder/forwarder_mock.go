package forwarder

import (
	"github.com/Financial-Times/mmif-rw-neo4j/mmif"

	"github.com/stretchr/testify/mock"
)

type MockForwarder struct {
	mock.Mock
	Forwarder
}

func (mf *MockForwarder) SendMessage(transactionID string, originSystem string, headers map[string]string, uuid string, doc *mmif.Mmif) error {
	args := mf.Called(transactionID, originSystem, headers, uuid, doc)
	return args.Error(0)
}
