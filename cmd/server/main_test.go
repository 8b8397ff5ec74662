package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/teatak/absa/config"
	"github.com/teatak/absa/head"
	"github.com/teatak/absa/tagger"
	"github.com/teatak/absa/tagset"
)

// screenEncoder puts "screen" on the first axis and everything else on the
// second.
type screenEncoder struct{}

func (screenEncoder) Dim() int { return 2 }

func (screenEncoder) Encode(tokens []string) (*mat.Dense, error) {
	if len(tokens) == 0 {
		return &mat.Dense{}, nil
	}
	x := mat.NewDense(len(tokens), 2, nil)
	for i, tok := range tokens {
		if strings.EqualFold(tok, "screen") {
			x.Set(i, 0, 1)
		} else {
			x.Set(i, 1, 1)
		}
	}
	return x, nil
}

func testServer(t *testing.T) *server {
	t.Helper()
	h, err := head.New(head.Config{Kind: head.KindLinear, Dim: 2})
	require.NoError(t, err)
	p := h.(head.Projected).Projection()
	p.W.Zero()
	p.B.Zero()
	p.W.Set(0, int(tagset.SPos), 10)
	p.W.Set(1, int(tagset.O), 10)

	tg, err := tagger.New(screenEncoder{}, h)
	require.NoError(t, err)
	return &server{cfg: config.Default(), logger: zap.NewNop(), tagger: tg}
}

func TestHandleTag(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tag", strings.NewReader(`{"text":"The screen and the screen","unique":true}`))
	req.Header.Set("X-Request-ID", "req-1")
	s.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))

	var resp TagResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Aspects, 1)
	assert.Equal(t, "screen", resp.Aspects[0].Text)
	assert.Equal(t, tagset.Positive, resp.Aspects[0].Sentiment)
}

func TestHandleTagNoAspects(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tag", strings.NewReader(`{"text":"nothing here"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"aspects":[]}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestHandleTagErrors(t *testing.T) {
	s := testServer(t)

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tag", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tag", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleReloadKeepsTaggerOnFailure(t *testing.T) {
	s := testServer(t)
	s.cfg.Data.Model = t.TempDir() + "/missing.txt"
	before := s.current()

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reload", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Same(t, before, s.current())
}

func TestHealth(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
