package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	votingengine "agora/contexts/civic-participation/voting-engine"
	votinghttp "agora/contexts/civic-participation/voting-engine/transport/http"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(votingengine.NewInMemoryModule(nil, nil), nil, "")
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-User-Id", "admin-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return rec
}

func createRequest() votinghttp.CreateVoteEventRequest {
	now := time.Now().UTC()
	return votinghttp.CreateVoteEventRequest{
		ProcessID: "process-1",
		Title:     "Community vote",
		Method:    "simple_majority",
		Options: []votinghttp.OptionSpecRequest{
			{OptionID: "opt-a", Kind: "proposal", Title: "Park"},
			{OptionID: "opt-b", Kind: "proposal", Title: "Library"},
		},
		StartsAt: now.Add(-time.Minute),
		EndsAt:   now.Add(time.Hour),
	}
}

func TestVoteEventRoundTripOverHTTP(t *testing.T) {
	server := newTestServer(t)
	handler := server.Handler()

	var created votinghttp.VoteEventResponse
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/vote-events", createRequest(), &created)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	if created.EventID == "" || created.Status != "pending" {
		t.Fatalf("unexpected created event: %+v", created)
	}

	base := "/api/v1/vote-events/" + created.EventID
	if rec := doJSON(t, handler, http.MethodPost, base+"/open", nil, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("open: status %d body %s", rec.Code, rec.Body.String())
	}

	var submitted votinghttp.SubmitBallotResponse
	rec = doJSON(t, handler, http.MethodPost, base+"/ballots", votinghttp.SubmitBallotRequest{
		VoterID:           "voter-1",
		VerificationLevel: 2,
		Selections:        []string{"opt-a"},
	}, &submitted)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: status %d body %s", rec.Code, rec.Body.String())
	}
	if submitted.ReceiptHash == "" || submitted.Replaced {
		t.Fatalf("unexpected submission: %+v", submitted)
	}

	var verified votinghttp.VerifyReceiptResponse
	rec = doJSON(t, handler, http.MethodPost, base+"/receipts/verify", votinghttp.VerifyReceiptRequest{
		VoterID:     "voter-1",
		ReceiptHash: submitted.ReceiptHash,
	}, &verified)
	if rec.Code != http.StatusOK || !verified.Valid {
		t.Fatalf("verify receipt: status %d valid %v", rec.Code, verified.Valid)
	}

	var result votinghttp.TallyResultResponse
	rec = doJSON(t, handler, http.MethodPost, base+"/close", votinghttp.TallyActionRequest{CountedBy: "clerk-1"}, &result)
	if rec.Code != http.StatusOK {
		t.Fatalf("close: status %d body %s", rec.Code, rec.Body.String())
	}
	if len(result.WinningOptions) != 1 || result.WinningOptions[0] != "opt-a" {
		t.Fatalf("unexpected winners: %v", result.WinningOptions)
	}

	var fetched votinghttp.TallyResultResponse
	rec = doJSON(t, handler, http.MethodGet, base+"/result", nil, &fetched)
	if rec.Code != http.StatusOK || fetched.AuditHash != result.AuditHash {
		t.Fatalf("get result: status %d hash %q want %q", rec.Code, fetched.AuditHash, result.AuditHash)
	}

	var audit votinghttp.VerifyTallyResponse
	rec = doJSON(t, handler, http.MethodGet, base+"/verify", nil, &audit)
	if rec.Code != http.StatusOK || !audit.Consistent {
		t.Fatalf("verify tally: status %d consistent %v", rec.Code, audit.Consistent)
	}
}

func TestCreateRequiresAuthenticatedUser(t *testing.T) {
	server := newTestServer(t)

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(createRequest()); err != nil {
		t.Fatalf("encode request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/vote-events", &buf)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var errResp votinghttp.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errResp.Code != "missing_user" {
		t.Fatalf("unexpected error code %q", errResp.Code)
	}
}

func TestErrorMappingOverHTTP(t *testing.T) {
	server := newTestServer(t)
	handler := server.Handler()

	var created votinghttp.VoteEventResponse
	if rec := doJSON(t, handler, http.MethodPost, "/api/v1/vote-events", createRequest(), &created); rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d", rec.Code)
	}
	base := "/api/v1/vote-events/" + created.EventID

	cases := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown event",
			method:     http.MethodGet,
			path:       "/api/v1/vote-events/evt-missing",
			wantStatus: http.StatusNotFound,
			wantCode:   "vote_event_not_found",
		},
		{
			name:   "ballot before open",
			method: http.MethodPost,
			path:   base + "/ballots",
			body: votinghttp.SubmitBallotRequest{
				VoterID:           "voter-1",
				VerificationLevel: 2,
				Selections:        []string{"opt-a"},
			},
			wantStatus: http.StatusConflict,
			wantCode:   "voting_closed",
		},
		{
			name:       "result before tally",
			method:     http.MethodGet,
			path:       base + "/result",
			wantStatus: http.StatusNotFound,
			wantCode:   "result_not_available",
		},
	}
	for _, tc := range cases {
		rec := doJSON(t, handler, tc.method, tc.path, tc.body, nil)
		if rec.Code != tc.wantStatus {
			t.Fatalf("%s: status %d, want %d (body %s)", tc.name, rec.Code, tc.wantStatus, rec.Body.String())
		}
		var errResp votinghttp.ErrorResponse
		if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
			t.Fatalf("%s: decode error body: %v", tc.name, err)
		}
		if errResp.Code != tc.wantCode {
			t.Fatalf("%s: error code %q, want %q", tc.name, errResp.Code, tc.wantCode)
		}
	}

	if rec := doJSON(t, handler, http.MethodPost, base+"/open", nil, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("open: status %d", rec.Code)
	}
	rec := doJSON(t, handler, http.MethodPost, base+"/ballots", votinghttp.SubmitBallotRequest{
		VoterID:           "voter-1",
		VerificationLevel: 2,
		Selections:        []string{"opt-a", "opt-a", "opt-c"},
	}, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid ballot: status %d, want 422", rec.Code)
	}
}

func TestSubmitFallsBackToHeaderVoter(t *testing.T) {
	server := newTestServer(t)
	handler := server.Handler()

	var created votinghttp.VoteEventResponse
	if rec := doJSON(t, handler, http.MethodPost, "/api/v1/vote-events", createRequest(), &created); rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d", rec.Code)
	}
	base := fmt.Sprintf("/api/v1/vote-events/%s", created.EventID)
	if rec := doJSON(t, handler, http.MethodPost, base+"/open", nil, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("open: status %d", rec.Code)
	}

	var submitted votinghttp.SubmitBallotResponse
	rec := doJSON(t, handler, http.MethodPost, base+"/ballots", votinghttp.SubmitBallotRequest{
		VerificationLevel: 2,
		Selections:        []string{"opt-b"},
	}, &submitted)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: status %d body %s", rec.Code, rec.Body.String())
	}

	var verified votinghttp.VerifyReceiptResponse
	rec = doJSON(t, handler, http.MethodPost, base+"/receipts/verify", votinghttp.VerifyReceiptRequest{
		VoterID:     "admin-1",
		ReceiptHash: submitted.ReceiptHash,
	}, &verified)
	if rec.Code != http.StatusOK || !verified.Valid {
		t.Fatalf("header voter receipt: status %d valid %v", rec.Code, verified.Valid)
	}
}
