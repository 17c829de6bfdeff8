package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.LikeToggled(true)
	m.LikeToggled(true)
	m.LikeToggled(false)
	m.FollowToggled(true)
	m.ArticleMutated("create")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Likes.WithLabelValues("liked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Likes.WithLabelValues("unliked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Follows.WithLabelValues("followed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Articles.WithLabelValues("create")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ArticleMutated("delete")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `codecommunity_article_mutations_total{op="delete"} 1`)
}
