package main

import (
	"github.com/Financial-Times/mmif-rw-neo4j/mmif"

	"github.com/Financial-Times/kafka-client-go/kafka"

	"github.com/stretchr/testify/mock"
)

type mockMmifService struct {
	mock.Mock
}

func (ms *mockMmifService) Write(contentUUID string, pipeline string, tid string, doc *mmif.Mmif) error {
	args := ms.Called(contentUUID, pipeline, tid, doc)
	return args.Error(0)
}

func (ms *mockMmifService) Read(contentUUID string, tid string, pipeline string) (*mmif.Mmif, bool, error) {
	args := ms.Called(contentUUID, tid, pipeline)
	doc, _ := args.Get(0).(*mmif.Mmif)
	return doc, args.Bool(1), args.Error(2)
}

func (ms *mockMmifService) Delete(contentUUID string, tid string, pipeline string) (bool, error) {
	args := ms.Called(contentUUID, tid, pipeline)
	return args.Bool(0), args.Error(1)
}

func (ms *mockMmifService) Count(pipeline string) (int, error) {
	args := ms.Called(pipeline)
	return args.Int(0), args.Error(1)
}

func (ms *mockMmifService) Check() error {
	args := ms.Called()
	return args.Error(0)
}

func (ms *mockMmifService) Initialise() error {
	args := ms.Called()
	return args.Error(0)
}

type mockConsumer struct {
	message kafka.FTMessage
	err     error
}

func (mc mockConsumer) StartListening(messageHandler func(message kafka.FTMessage) error) {
	_ = messageHandler(mc.message)
}

func (mc mockConsumer) Shutdown() {
}

func (mc mockConsumer) ConnectivityCheck() error {
	return mc.err
}
