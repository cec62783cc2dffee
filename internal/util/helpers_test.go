package util

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUniqStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, UniqStrings([]string{" a", "b", "", "a ", "c", "b"}))
	assert.Empty(t, UniqStrings(nil))
}

func TestDedupeKeepsValuesAsGiven(t *testing.T) {
	assert.Equal(t, []string{" linux ", "linux", "b"}, Dedupe([]string{" linux ", "", "linux", " linux ", "b"}))
	assert.Empty(t, Dedupe(nil))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"wss://a", "wss://b", "wss://c"}, SplitList("wss://a, wss://b\r\nwss://c,,wss://a"))
	assert.Empty(t, SplitList(" , \n"))
}

func TestLimitSlice(t *testing.T) {
	s := []int{1, 2, 3}
	assert.Equal(t, []int{1, 2}, LimitSlice(s, 2))
	assert.Equal(t, s, LimitSlice(s, 5))
	assert.Equal(t, s, LimitSlice(s, -1))
}

func TestPrefixRunes(t *testing.T) {
	assert.Equal(t, "héll", PrefixRunes("héllo", 4))
	assert.Equal(t, "héllo", PrefixRunes("héllo", 10))
	assert.Equal(t, "", PrefixRunes("héllo", 0))
}

func TestEncodeURIComponent(t *testing.T) {
	assert.Equal(t, "wss%3A%2F%2Ftracker.example%2Fannounce%3Fa%3Db%20c", EncodeURIComponent("wss://tracker.example/announce?a=b c"))
	assert.Equal(t, "!'()*-_.~", EncodeURIComponent("!'()*-_.~"))
}

func TestGetTagValues(t *testing.T) {
	tags := [][]string{{"t", "linux"}, {"x"}, {"t", "iso"}, {"title", "Ubuntu"}}
	assert.Equal(t, "linux", GetTagValue(tags, "t"))
	assert.Equal(t, "", GetTagValue(tags, "x"))
	assert.Equal(t, []string{"linux", "iso"}, GetTagValues(tags, "t"))
	assert.Nil(t, GetTagValues(tags, "i"))
}

func TestRandomString(t *testing.T) {
	s := RandomString(8)
	assert.Len(t, s, 8)
	assert.Empty(t, strings.Trim(s, base36Alphabet))
	assert.NotEqual(t, s, RandomString(8))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0 B", FormatBytes(-5))
	assert.Equal(t, "1.5 KiB", FormatBytes(1536))
	assert.Equal(t, "1.0 GiB", FormatBytes(1<<30))
}

func TestHosts(t *testing.T) {
	assert.True(t, IsInternalHost("Printer.LOCAL"))
	assert.True(t, IsInternalHost("abc.onion"))
	assert.False(t, IsInternalHost("relay.damus.io"))
	assert.True(t, IsLoopbackHost("127.0.0.2"))
	assert.True(t, IsLoopbackHost("::1"))
	assert.False(t, IsLoopbackHost("10.0.0.1"))
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	assert.NoError(t, WriteJSON(rec, http.StatusCreated, map[string]int{"n": 1}))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"n":1}`, rec.Body.String())
}

func TestSetHTMLHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SetHTMLHeaders(rec, 90*time.Second)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "max-age=90", rec.Header().Get("Cache-Control"))
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusServiceUnavailable, "busy", errors.New("boom"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "busy\n", rec.Body.String())
}
