package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "github.com/WullT/P8-Tools/internal/api/v1"
	"github.com/WullT/P8-Tools/internal/conf"
	"github.com/WullT/P8-Tools/internal/datastore"
	"github.com/WullT/P8-Tools/internal/scanner"
	"github.com/WullT/P8-Tools/internal/suncalc"
	tu "github.com/WullT/P8-Tools/internal/testutil"
)

const (
	a0900 = "nodeA_2021-06-01T09-00-00Z.jpg"
	a1000 = "nodeA_2021-06-01T10-00-00Z.jpg"
	a1001 = "nodeA_2021-06-01T10-01-00Z.jpg"
	a1900 = "nodeA_2021-06-01T19-00-00Z.jpg"
	b0930 = "nodeB_2021-06-01T09-30-00Z.jpg"
)

type fixture struct {
	e     *echo.Echo
	store datastore.Interface
	ctrl  *api.Controller
}

func newFixture(t *testing.T, opts ...api.Option) *fixture {
	t.Helper()
	store := tu.NewStore(t)
	tu.Seed(t, store, a1900, b0930, a1001, a0900, a1000)

	settings := tu.Settings(t)
	settings.Nodes = []conf.NodeLocation{{ID: "nodeA", Latitude: 47.3769, Longitude: 8.5417}}

	e := echo.New()
	opts = append([]api.Option{api.WithLogger(tu.Logger()), api.WithSunCalc(suncalc.New(time.Hour))}, opts...)
	ctrl, err := api.New(e, store, settings, opts...)
	require.NoError(t, err)
	return &fixture{e: e, store: store, ctrl: ctrl}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func filenamesOf(images []api.ImageResponse) []string {
	out := make([]string, len(images))
	for i := range images {
		out[i] = images[i].Filename
	}
	return out
}

func TestSelectImages(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/images?node=nodeA&start_hour=9&end_hour=10", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[api.SelectionResponse](t, rec)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, []string{a0900, a1000}, filenamesOf(resp.Images))
	assert.Equal(t, "all", resp.Query.Status)
	require.NotNil(t, resp.Query.StartHour)
	assert.Equal(t, 9, *resp.Query.StartHour)
}

func TestSelectImages_DefaultBoundsAreOpen(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/images?start_hour=8&end_hour=18", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[api.SelectionResponse](t, rec)
	assert.Equal(t, []string{a0900, a1000, a1001, a1900, b0930}, filenamesOf(resp.Images))
	assert.Nil(t, resp.Query.StartHour)
	assert.Nil(t, resp.Query.EndHour)
}

func TestSelectImages_InvalidParameters(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for _, path := range []string{
		"/api/v1/images?start_hour=25",
		"/api/v1/images?start_hour=nine",
		"/api/v1/images?status=maybe",
		"/api/v1/images?from=June",
	} {
		rec := f.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		resp := decode[api.ErrorResponse](t, rec)
		assert.NotEmpty(t, resp.CorrelationID, path)
		assert.Equal(t, http.StatusBadRequest, resp.Code, path)
	}
}

func TestSelectImages_Daylight(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/images?node=nodeA&daylight=true&date=2021-06-01", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[api.SelectionResponse](t, rec)
	// civil dusk in Zurich is after 19:00 UTC in June
	assert.Equal(t, []string{a0900, a1000, a1001, a1900}, filenamesOf(resp.Images))

	rec = f.do(t, http.MethodGet, "/api/v1/images?node=nodeB&daylight=true", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "node without location")
}

func TestSelectImages_DaylightEndingAtDefaultHour(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	noon := "nodeA_2021-03-10T12-00-00Z.jpg"
	night := "nodeA_2021-03-10T23-00-00Z.jpg"
	tu.Seed(t, f.store, noon, night)

	day := time.Date(2021, 3, 10, 0, 0, 0, 0, time.UTC)
	_, end, err := suncalc.New(time.Hour).DaylightHours(47.3769, 8.5417, day)
	require.NoError(t, err)
	require.Equal(t, 18, end, "dusk rounds up to the default end hour")

	rec := f.do(t, http.MethodGet, "/api/v1/images?node=nodeA&daylight=true&date=2021-03-10&from=2021-03-10&to=2021-03-11", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[api.SelectionResponse](t, rec)
	assert.Equal(t, []string{noon}, filenamesOf(resp.Images))
	require.NotNil(t, resp.Query.EndHour)
	assert.Equal(t, 18, *resp.Query.EndHour)
}

func TestNavigateImages(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/images/navigate?node=nodeA&current="+a1900+"&move=next", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[api.NavigateResponse](t, rec)
	assert.Equal(t, a0900, resp.Image.Filename, "next after the last wraps to the first")
	assert.Equal(t, 0, resp.Index)
	assert.Equal(t, 4, resp.Count)

	rec = f.do(t, http.MethodGet, "/api/v1/images/navigate?node=nodeA&current="+a0900+"&move=skip&n=-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, a1900, decode[api.NavigateResponse](t, rec).Image.Filename)

	rec = f.do(t, http.MethodGet, "/api/v1/images/navigate?node=nodeA&move=sideways", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/images/navigate?node=nobody", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClassificationAndFavorite(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/images/"+a0900+"/classification", `{"flower":"present"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	img := decode[api.ImageResponse](t, rec)
	assert.Equal(t, datastore.Present, img.Flower)

	rec = f.do(t, http.MethodPut, "/api/v1/images/"+a1000+"/favorite", `{"favorite":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[api.ImageResponse](t, rec).Favorite)

	rec = f.do(t, http.MethodGet, "/api/v1/images?status=classified", "")
	assert.Equal(t, []string{a0900}, filenamesOf(decode[api.SelectionResponse](t, rec).Images))
	rec = f.do(t, http.MethodGet, "/api/v1/images?status=favorite", "")
	assert.Equal(t, []string{a1000}, filenamesOf(decode[api.SelectionResponse](t, rec).Images))

	rec = f.do(t, http.MethodPut, "/api/v1/images/nodeZ_2021-01-01T00-00-00Z.jpg/classification", `{"flower":"absent"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodPut, "/api/v1/images/"+a0900+"/classification", `{"flower":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnnotations(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	body := `{"image_width":200,"image_height":150,"shapes":[
		{"x0":50.7,"y0":40.2,"x1":10.1,"y1":10.9},
		{"x0":5,"y0":5,"x1":5,"y1":30}
	]}`
	rec := f.do(t, http.MethodPut, "/api/v1/images/"+a0900+"/annotations/daisy", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	boxes := decode[[]api.AnnotationResponse](t, rec)
	require.Len(t, boxes, 1, "zero-area shape dropped")
	assert.Equal(t, 10, boxes[0].Box.X0)
	assert.Equal(t, 40, boxes[0].Box.Y1)
	assert.Equal(t, "daisy", boxes[0].Type)

	rec = f.do(t, http.MethodGet, "/api/v1/images/"+a0900+"/labels", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0 0.150000 0.166667 0.200000 0.200000\n", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/images/"+a0900+"/annotations?type=cornflower", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]api.AnnotationResponse](t, rec))

	// clearing the type
	rec = f.do(t, http.MethodPut, "/api/v1/images/"+a0900+"/annotations/2", `{"shapes":[]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodGet, "/api/v1/images/"+a0900+"/annotations", "")
	assert.Empty(t, decode[[]api.AnnotationResponse](t, rec))
}

func TestAnnotations_Errors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/images/"+a0900+"/annotations/tulip", `{"image_width":10,"image_height":10}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/v1/images/"+a0900+"/annotations/daisy", `{"image_width":0,"image_height":150,"shapes":[{"x0":1,"y0":1,"x1":5,"y1":5}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "zero image width")

	rec = f.do(t, http.MethodPut, "/api/v1/images/unknown_2021-01-01T00-00-00Z.jpg/annotations/daisy", `{"image_width":10,"image_height":10}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetNodes_InvalidatedOnClassification(t *testing.T) {
	t.Parallel()
	f := newFixture(t, api.WithCacheTTL(time.Hour))

	rec := f.do(t, http.MethodGet, "/api/v1/nodes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	nodes := decode[[]datastore.NodeAggregate](t, rec)
	require.Len(t, nodes, 2)
	assert.Equal(t, int64(4), nodes[0].Images)
	assert.Equal(t, int64(0), nodes[0].Classified)

	rec = f.do(t, http.MethodPut, "/api/v1/images/"+a0900+"/classification", `{"flower":"uncertain"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/nodes", "")
	nodes = decode[[]datastore.NodeAggregate](t, rec)
	assert.Equal(t, int64(1), nodes[0].Classified)
	assert.Equal(t, int64(1), nodes[0].Uncertain)
}

func TestNodeDatesAndIntervals(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	var names []string
	for day := 1; day <= 7; day++ {
		names = append(names, fmt.Sprintf("nodeC_2021-06-%02dT12-00-00Z.jpg", day))
	}
	tu.Seed(t, f.store, names...)
	for _, n := range names {
		require.NoError(t, f.store.SetClassification(ctx, n, datastore.Present))
	}

	rec := f.do(t, http.MethodGet, "/api/v1/nodes/nodeC/dates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dates := decode[[]string](t, rec)
	assert.Len(t, dates, 7)
	assert.Equal(t, "2021-06-01", dates[0])

	rec = f.do(t, http.MethodGet, "/api/v1/nodes/nodeC/intervals", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	intervals := decode[[]api.IntervalResponse](t, rec)
	require.Len(t, intervals, 1)
	assert.Equal(t, time.Date(2021, 6, 3, 12, 0, 0, 0, time.UTC), intervals[0].Start.UTC())
	assert.Equal(t, time.Date(2021, 6, 7, 12, 0, 0, 0, time.UTC), intervals[0].End.UTC())
	assert.Equal(t, "4 days 00:00:00", intervals[0].Duration)

	rec = f.do(t, http.MethodGet, "/api/v1/nodes/nodeC/intervals?format=csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "start,end,duration\n2021-06-03T12:00:00Z,2021-06-07T12:00:00Z,4 days 00:00:00\n", rec.Body.String())
}

func TestNodeDaylight(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/nodes/nodeA/daylight?date=2021-06-21", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[api.DaylightResponse](t, rec)
	assert.Equal(t, "2021-06-21", resp.Date)
	assert.Less(t, resp.StartHour, resp.EndHour)
	assert.True(t, resp.Events.Sunrise.Before(resp.Events.Sunset))

	rec = f.do(t, http.MethodGet, "/api/v1/nodes/nodeB/daylight", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCountsAndHealth(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/counts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	counts := decode[datastore.ImageCounts](t, rec)
	assert.Equal(t, int64(5), counts.All)
	assert.Equal(t, int64(5), counts.Available)

	rec = f.do(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJobs(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/scan", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "scanner not configured")
	rec = f.do(t, http.MethodPost, "/api/v1/export", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "exporter not configured")

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "images/nodeA/"+a0900, []byte("jpg"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "images/nodeD/nodeD_2021-06-05T08-00-00Z.jpg", []byte("jpg"), 0o644))

	store := tu.NewStore(t)
	tu.Seed(t, store, a0900, a1000)
	settings := tu.Settings(t)
	settings.Main.BasePath = "images"

	e := echo.New()
	sc := scanner.New(store, fs, []string{".jpg"}, scanner.WithLogger(tu.Logger()))
	_, err := api.New(e, store, settings, api.WithLogger(tu.Logger()), api.WithScanner(sc))
	require.NoError(t, err)
	f = &fixture{e: e, store: store}

	rec = f.do(t, http.MethodPost, "/api/v1/scan", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[scanner.Report](t, rec)
	assert.Equal(t, 2, report.Matched)
	assert.Equal(t, int64(1), report.Store.Inserted)
	assert.Equal(t, int64(1), report.Store.Unavailable, a1000+" is gone from disk")
}
