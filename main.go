package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Financial-Times/mmif-rw-neo4j/forwarder"
	"github.com/Financial-Times/mmif-rw-neo4j/store"

	logger "github.com/Financial-Times/go-logger/v2"
	"github.com/Financial-Times/http-handlers-go/httphandlers"
	"github.com/Financial-Times/kafka-client-go/kafka"
	"github.com/Financial-Times/neo-utils-go/neoutils"
	status "github.com/Financial-Times/service-status-go/httphandlers"
	"github.com/gorilla/mux"
	cli "github.com/jawher/mow.cli"
	_ "github.com/joho/godotenv/autoload"
	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
)

func main() {

	app := cli.App("mmif-rw", "A RESTful API for managing MMIF files in neo4j")
	neoURL := app.String(cli.StringOpt{
		Name:   "neoUrl",
		Value:  "http://localhost:7474/db/data",
		Desc:   "neo4j endpoint URL",
		EnvVar: "NEO_URL",
	})
	port := app.Int(cli.IntOpt{
		Name:   "port",
		Value:  8080,
		Desc:   "Port to listen on",
		EnvVar: "APP_PORT",
	})
	batchSize := app.Int(cli.IntOpt{
		Name:   "batchSize",
		Value:  1024,
		Desc:   "Maximum number of statements to execute per batch",
		EnvVar: "BATCH_SIZE",
	})
	logLevel := app.String(cli.StringOpt{
		Name:   "logLevel",
		Value:  "INFO",
		Desc:   "Logging level (DEBUG, INFO, WARN, ERROR)",
		EnvVar: "LOG_LEVEL",
	})
	config := app.String(cli.StringOpt{
		Name:   "pipelineConfigPath",
		Value:  "mmif-config.json",
		Desc:   "Json Config file - containing two config maps: one for originHeader to pipeline, another for pipeline to MMIF version mappings. ",
		EnvVar: "PIPELINE_CONFIG_PATH",
	})
	zookeeperAddress := app.String(cli.StringOpt{
		Name:   "zookeeperAddress",
		Value:  "localhost:2181",
		Desc:   "Address of the zookeeper service",
		EnvVar: "ZOOKEEPER_ADDRESS",
	})
	shouldConsumeMessages := app.Bool(cli.BoolOpt{
		Name:   "shouldConsumeMessages",
		Value:  false,
		Desc:   "Boolean value specifying if this service should consume messages from the specified topic",
		EnvVar: "SHOULD_CONSUME_MESSAGES",
	})
	consumerGroup := app.String(cli.StringOpt{
		Name:   "consumerGroup",
		Desc:   "Kafka consumer group name",
		EnvVar: "CONSUMER_GROUP",
	})
	consumerTopic := app.String(cli.StringOpt{
		Name:   "consumerTopic",
		Desc:   "Kafka consumer topic name",
		EnvVar: "CONSUMER_TOPIC",
	})
	brokerAddress := app.String(cli.StringOpt{
		Name:   "brokerAddress",
		Value:  "localhost:9092",
		Desc:   "Kafka address",
		EnvVar: "BROKER_ADDRESS",
	})
	producerTopic := app.String(cli.StringOpt{
		Name:   "producerTopic",
		Value:  "PostPublicationMmifEvents",
		Desc:   "Topic to which received messages will be forwarded",
		EnvVar: "PRODUCER_TOPIC",
	})
	shouldForwardMessages := app.Bool(cli.BoolOpt{
		Name:   "shouldForwardMessages",
		Value:  true,
		Desc:   "Decides if MMIF messages should be forwarded to a post publication queue",
		EnvVar: "SHOULD_FORWARD_MESSAGES",
	})
	validateSchema := app.Bool(cli.BoolOpt{
		Name:   "validateSchema",
		Value:  true,
		Desc:   "Validate incoming MMIF files against the MMIF JSON schema before storing them",
		EnvVar: "VALIDATE_SCHEMA",
	})
	appName := app.String(cli.StringOpt{
		Name:   "appName",
		Value:  "mmif-rw",
		Desc:   "Name of the service",
		EnvVar: "APP_NAME",
	})

	app.Action = func() {
		logConf := logger.KeyNamesConfig{KeyTime: "@time"}
		log := logger.NewUPPLogger(*appName, *logLevel, logConf)
		log.WithFields(map[string]interface{}{"port": *port, "neoURL": *neoURL}).Infof("Service %s has successfully started.", *appName)

		mmifService, err := setupMmifService(*neoURL, *batchSize)
		if err != nil {
			log.WithError(err).Fatal("can't initialise MMIF service")
		}
		healtcheckHandler := healthCheckHandler{mmifService: mmifService, appName: *appName}
		originMap, pipelineMap, messageType, err := readConfigMap(*config)
		if err != nil {
			log.WithError(err).Fatal("can't read service configuration")
		}

		httpHandler := httpHandler{mmifService: mmifService}
		httpHandler.originMap = originMap
		httpHandler.pipelineMap = pipelineMap
		httpHandler.messageType = messageType
		httpHandler.validate = *validateSchema
		httpHandler.log = log

		var f forwarder.QueueForwarder
		if *shouldForwardMessages {
			p, err := setupMessageProducer(*brokerAddress, *producerTopic)
			if err != nil {
				log.WithError(err).Fatal("can't initialise message producer")
			}
			f = forwarder.Forwarder{Producer: p, MessageType: messageType}
			httpHandler.forwarder = f
		}

		var qh queueHandler
		if *shouldConsumeMessages {
			var consumer kafka.Consumer
			consumer, err = setupMessageConsumer(*zookeeperAddress, *consumerGroup, *consumerTopic)
			if err != nil {
				log.WithError(err).Fatal("can't initialise message consumer")
			}
			healtcheckHandler.consumer = consumer

			qh = queueHandler{mmifService: mmifService, consumer: consumer, forwarder: f}
			qh.originMap = originMap
			qh.pipelineMap = pipelineMap
			qh.messageType = messageType
			qh.validate = *validateSchema
			qh.log = log
			qh.Ingest()
		}

		http.Handle("/", router(&httpHandler, &healtcheckHandler, log))

		go func() {
			err = startServer(*port)
			if err != nil {
				log.WithError(err).Fatal("http server error occurred")
			}
		}()

		waitForSignal()
		if *shouldConsumeMessages {
			log.Infof("Shutting down Kafka consumer")
			qh.consumer.Shutdown()
		}
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Printf("app could not start: %s", err)
		return
	}
}

func setupMmifService(neoURL string, batchSize int) (store.Service, error) {
	conf := neoutils.DefaultConnectionConfig()
	conf.BatchSize = batchSize
	db, err := neoutils.Connect(neoURL, conf)
	if err != nil {
		return nil, errors.Wrap(err, "error connecting to Neo4j")
	}

	mmifService := store.NewCypherMmifService(db)
	err = mmifService.Initialise()
	if err != nil {
		return nil, errors.Wrap(err, "MMIF service has not been initialised correctly")
	}
	return mmifService, nil
}

func setupMessageProducer(brokerAddress string, producerTopic string) (kafka.Producer, error) {
	producer, err := kafka.NewProducer(brokerAddress, producerTopic, kafka.DefaultProducerConfig())
	if err != nil {
		return nil, errors.Wrap(err, "cannot start queue producer")
	}
	return producer, nil
}

func setupMessageConsumer(zookeeperAddress string, consumerGroup string, topic string) (kafka.Consumer, error) {
	// discard the output of zookeeper library
	noneLogger := logger.NewUPPInfoLogger("mmif-rw-neo4j-kafka-consumer")
	noneLogger.SetOutput(ioutil.Discard)
	groupConfig := kafka.DefaultConsumerConfig()
	groupConfig.Zookeeper.Logger = noneLogger

	config := kafka.Config{
		ZookeeperConnectionString: zookeeperAddress,
		ConsumerGroup:             consumerGroup,
		Topics:                    []string{topic},
		ConsumerGroupConfig:       groupConfig,
	}

	consumer, err := kafka.NewConsumer(config)
	if err != nil {
		return nil, errors.Wrap(err, "cannot start queue consumer")
	}
	return consumer, nil
}

func readConfigMap(jsonPath string) (originMap map[string]string, pipelineMap map[string]string, messageType string, err error) {

	file, err := ioutil.ReadFile(jsonPath)
	if err != nil {
		return nil, nil, "", errors.Wrap(err, "error reading configuration file")
	}

	type config struct {
		OriginMap   map[string]string `json:"originMap"`
		PipelineMap map[string]string `json:"pipelineMap"`
		MessageType string            `json:"messageType"`
	}
	var c config
	err = json.Unmarshal(file, &c)
	if err != nil {
		return nil, nil, "", errors.Wrap(err, "error marshalling config file")
	}

	if c.MessageType == "" {
		return nil, nil, "", errors.New("message type is not configured")
	}

	return c.OriginMap, c.PipelineMap, c.MessageType, nil
}

func router(hh *httpHandler, hc *healthCheckHandler, log *logger.UPPLogger) http.Handler {
	servicesRouter := mux.NewRouter()
	servicesRouter.Headers("Content-type: application/json")

	// Then API specific ones:
	servicesRouter.HandleFunc("/content/{uuid}/mmif/{pipeline}", hh.GetMmif).Methods("GET")
	servicesRouter.HandleFunc("/content/{uuid}/mmif/{pipeline}", hh.PutMmif).Methods("PUT")
	servicesRouter.HandleFunc("/content/{uuid}/mmif/{pipeline}", hh.DeleteMmif).Methods("DELETE")
	servicesRouter.HandleFunc("/content/{uuid}/mmif/{pipeline}/{elementId}", hh.GetElement).Methods("GET")
	servicesRouter.HandleFunc("/content/mmif/{pipeline}/__count", hh.CountMmif).Methods("GET")
	servicesRouter.HandleFunc("/mmif/__validate", hh.ValidateMmif).Methods("POST")

	servicesRouter.HandleFunc("/__health", hc.Health()).Methods("GET")
	servicesRouter.HandleFunc("/__gtg", status.NewGoodToGoHandler(hc.GTG)).Methods("GET")
	servicesRouter.HandleFunc(status.PingPath, status.PingHandler).Methods("GET")
	servicesRouter.HandleFunc(status.PingPathDW, status.PingHandler).Methods("GET")
	servicesRouter.HandleFunc(status.BuildInfoPath, status.BuildInfoHandler).Methods("GET")
	servicesRouter.HandleFunc(status.BuildInfoPathDW, status.BuildInfoHandler).Methods("GET")

	var monitoringRouter http.Handler = servicesRouter
	monitoringRouter = httphandlers.TransactionAwareRequestLoggingHandler(log.Logger, monitoringRouter)
	monitoringRouter = httphandlers.HTTPMetricsHandler(metrics.DefaultRegistry, monitoringRouter)

	return monitoringRouter
}

func startServer(port int) error {
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), nil); err != nil {
		return errors.Wrap(err, "unable to start server")
	}
	return nil
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
}
