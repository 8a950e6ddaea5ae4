package actions

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/relloyd/cdcpipe/logger"
	"github.com/relloyd/cdcpipe/stats"
)

type WebServerResponse uint32

const (
	Okay WebServerResponse = iota + 1
	Error
)

func (w WebServerResponse) MarshalJSON() ([]byte, error) {
	var retval string
	switch w {
	case Okay:
		retval = "ok"
	case Error:
		retval = "error"
	default:
		return nil, fmt.Errorf("unhandled WebServerResponse value in MarshalJSON() conversion")
	}
	return json.Marshal(retval)
}

func (w *WebServerResponse) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "ok":
		*w = Okay
	case "error":
		*w = Error
	default:
		return fmt.Errorf("unexpected response status %q", s)
	}
	return nil
}

type ResponseSimple struct {
	ServerStatus WebServerResponse `json:"status"`
	Message      string            `json:"message,omitempty"`
}

type ResponseStreamList struct {
	Status  WebServerResponse `json:"status"`
	RunID   string            `json:"runId"`
	Streams []stats.Stats     `json:"streams"`
}

type ResponseStreamStatus struct {
	Status  WebServerResponse `json:"status"`
	Message string            `json:"message,omitempty"`
	Stream  *stats.Stats      `json:"stream,omitempty"`
}

func GetHandlerHealth(log logger.Logger) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(log, w, http.StatusOK, ResponseSimple{ServerStatus: Okay})
	}
}

// GetHandlerStop asks every stream to stop after its current batch.
func GetHandlerStop(log logger.Logger, streams StreamController) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		streams.Stop()
		log.Info("Stop requested via HTTP")
		respond(log, w, http.StatusOK, ResponseSimple{ServerStatus: Okay, Message: "stopping at the next batch boundary"})
	}
}

func GetHandlerStreamList(log logger.Logger, streams StreamController, runID string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(log, w, http.StatusOK, ResponseStreamList{Status: Okay, RunID: runID, Streams: streams.Stats()})
	}
}

func GetHandlerStreamStatus(log logger.Logger, streams StreamController) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		table := mux.Vars(r)["table"]
		s, ok := streams.Status(table)
		if !ok {
			log.Info("HTTP request for status of table ", table, " that is not streaming.")
			respond(log, w, http.StatusNotFound, ResponseStreamStatus{Status: Error, Message: fmt.Sprintf("table %v is not streaming", table)})
			return
		}
		respond(log, w, http.StatusOK, ResponseStreamStatus{Status: Okay, Stream: &s})
	}
}

// respond will marshal i to JSON and write it to w with the given status code.
func respond(log logger.Logger, w http.ResponseWriter, code int, i interface{}) {
	j, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		log.Error(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err = w.Write(j); err != nil {
		log.Error(err)
	}
}
