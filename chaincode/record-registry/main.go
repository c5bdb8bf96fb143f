package main

import (
	"log"
	"os"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/medrex/record-registry/chaincode/record-registry/recordregistry"
	"github.com/medrex/record-registry/pkg/logger"
)

func main() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	recordRegistryChaincode, err := contractapi.NewChaincode(recordregistry.NewSmartContract(logger.New(level)))
	if err != nil {
		log.Panicf("Error creating RecordRegistry chaincode: %v", err)
	}

	if err := recordRegistryChaincode.Start(); err != nil {
		log.Panicf("Error starting RecordRegistry chaincode: %v", err)
	}
}
