package comparison

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

const compareBody = `{"period_start":"2024-01-01T00:00:00Z","period_end":"2024-12-31T00:00:00Z"}`

func compareRequest(t *testing.T, h *Handler, measureID string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/measures/x/$compare", strings.NewReader(compareBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(measureID)
	return rec, h.CompareMeasure(c)
}

func TestHandler_CompareMeasure_Matched(t *testing.T) {
	subjects, events := compareFixture()
	cmp := newComparator(t,
		loadedStore(t, subjects, events),
		loadedStore(t, subjects, events))
	h := NewHandler(cmp)

	rec, err := compareRequest(t, h, "cms125-breast-cancer-screening")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var result Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.PopulationsMatch || result.State != StateMatched {
		t.Errorf("expected matched result, got %+v", result)
	}
}

func TestHandler_CompareMeasure_PartialFailure(t *testing.T) {
	subjects, events := compareFixture()
	broken := loadedStore(t, subjects, events)
	broken.Close()
	cmp := newComparator(t, loadedStore(t, subjects, events), broken)
	h := NewHandler(cmp)

	rec, err := compareRequest(t, h, "cms125-breast-cancer-screening")
	if err != nil {
		t.Fatalf("partial failure must be rendered, not returned: %v", err)
	}
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	var resp partialFailureResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.FailedPath == "" {
		t.Error("expected the failed path to be named")
	}
	if resp.SurvivingReport == nil {
		t.Error("expected the surviving report in the response")
	}
}

func TestHandler_CompareMeasure_UnknownMeasure(t *testing.T) {
	subjects, events := compareFixture()
	cmp := newComparator(t,
		loadedStore(t, subjects, events),
		loadedStore(t, subjects, events))
	h := NewHandler(cmp)

	_, err := compareRequest(t, h, "no-such-measure")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
