package api

import (
	"github.com/gorilla/mux"
)

const collectionPath = "/databases/{db}/collections/{coll}"

// RegisterRoutes registers all API routes with the given router. Routes
// match the escaped path so that an escaped slash stays inside its name.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.UseEncodedPath()

	router.HandleFunc("/health", h.HandleHealth).Methods("GET")
	router.HandleFunc("/stats", h.HandleStats).Methods("GET")

	// Databases
	router.HandleFunc("/databases", h.HandleListDatabases).Methods("GET")
	router.HandleFunc("/databases/{db}", h.HandleDropDatabase).Methods("DELETE")
	router.HandleFunc("/databases/{db}/collections", h.HandleListCollections).Methods("GET")

	// Collections
	router.HandleFunc(collectionPath, h.HandleDropCollection).Methods("DELETE")
	router.HandleFunc(collectionPath+"/insert", h.HandleInsert).Methods("POST")
	router.HandleFunc(collectionPath+"/batch", h.HandleBatchInsert).Methods("POST")
	router.HandleFunc(collectionPath+"/find", h.HandleFind).Methods("POST")
	router.HandleFunc(collectionPath+"/count", h.HandleCount).Methods("POST")
	router.HandleFunc(collectionPath+"/delete", h.HandleDelete).Methods("POST")

	// Indexes
	router.HandleFunc(collectionPath+"/indexes", h.HandleListIndexes).Methods("GET")
	router.HandleFunc(collectionPath+"/indexes", h.HandleCreateIndex).Methods("POST")
	router.HandleFunc(collectionPath+"/indexes/{name}", h.HandleDropIndex).Methods("DELETE")
}
