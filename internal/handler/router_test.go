package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/enterprise-bte/bte-engine/internal/domain/enums"
	"github.com/enterprise-bte/bte-engine/internal/workflow"
)

func TestParseActionType(t *testing.T) {
	cases := []struct {
		in     string
		want   enums.ActionType
		wantOk bool
	}{
		{"approve", enums.ActionApprove, true},
		{"reject", enums.ActionReject, true},
		{"delegate", enums.ActionDelegate, true},
		{"withdraw", 0, false},
		{"", 0, false},
		{"APPROVE", 0, false},
	}
	for _, c := range cases {
		got, ok := parseActionType(c.in)
		if ok != c.wantOk {
			t.Errorf("parseActionType(%q) ok = %v, want %v", c.in, ok, c.wantOk)
			continue
		}
		if ok && got != c.want {
			t.Errorf("parseActionType(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestWriteEngineError_MapsKindToStatus(t *testing.T) {
	cases := []struct {
		kind       workflow.ErrorKind
		wantStatus int
	}{
		{workflow.KindInvalidInput, http.StatusBadRequest},
		{workflow.KindAccessDenied, http.StatusForbidden},
		{workflow.KindStateConflict, http.StatusConflict},
		{workflow.KindPolicyViolation, http.StatusUnprocessableEntity},
		{workflow.KindConfigurationError, http.StatusUnprocessableEntity},
		{workflow.KindNotFound, http.StatusNotFound},
		{workflow.KindInternalError, http.StatusInternalServerError},
	}
	for _, c := range cases {
		err := &workflow.EngineError{Kind: c.kind, Reason: "r", Message: "boom"}
		rec := httptest.NewRecorder()
		writeEngineError(rec, err)
		if rec.Code != c.wantStatus {
			t.Errorf("kind %s: status = %d, want %d", c.kind, rec.Code, c.wantStatus)
		}
	}
}

func TestWriteEngineError_NonEngineErrorIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	writeEngineError(rec, errors.New("unexpected"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}
