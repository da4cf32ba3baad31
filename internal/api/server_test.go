package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"fairlens/domain/core"
	"fairlens/domain/fairness"
	"fairlens/internal/config"
	"fairlens/internal/session"
	"fairlens/internal/testkit"
)

type ServerSuite struct {
	suite.Suite
	server   *Server
	sessions *session.Manager
	sessID   string
}

func (s *ServerSuite) SetupTest() {
	cfg := &config.Config{
		Server: config.ServerConfig{Port: "0", GinMode: "test"},
		Analysis: config.AnalysisConfig{
			FairnessThreshold: 0.1,
			GlobalIterations:  30,
			LocalNeighbors:    5,
			Seed:              42,
			TopKNeurons:       5,
			PerturbationScale: 0.3,
			DedupEpsilon:      1e-3,
			MaxSamples:        100,
		},
	}
	s.sessions = session.NewManager(nil)

	pool, labels := testkit.CreditPool(40, 7)
	sess, err := s.sessions.Create(testkit.BiasedNetwork(), pool, testkit.FeatureNames(), labels,
		[]string{"gender"}, core.ModelHash(""))
	s.Require().NoError(err)
	s.sessID = sess.ID.String()

	s.server = NewServer(cfg, s.sessions)
}

func (s *ServerSuite) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.server.Router().ServeHTTP(rec, req)
	return rec
}

func (s *ServerSuite) decode(rec *httptest.ResponseRecorder) map[string]interface{} {
	var payload map[string]interface{}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func (s *ServerSuite) TestRoot() {
	rec := s.do(http.MethodGet, "/", nil)
	s.Equal(http.StatusOK, rec.Code)

	payload := s.decode(rec)
	s.Equal("running", payload["status"])
	s.Equal(float64(1), payload["sessions"])
}

func (s *ServerSuite) TestSessionInfo() {
	rec := s.do(http.MethodGet, "/sessions/"+s.sessID, nil)
	s.Equal(http.StatusOK, rec.Code)

	payload := s.decode(rec)
	s.Equal(s.sessID, payload["session_id"])
	s.Equal(float64(3), payload["num_features"])
	s.Contains(payload["detected_sensitive"], "gender")
}

func (s *ServerSuite) TestUnknownSessionIs404() {
	rec := s.do(http.MethodGet, "/sessions/"+core.NewID().String(), nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("error", s.decode(rec)["status"])
}

func (s *ServerSuite) TestColumns() {
	dataPath := filepath.Join(s.T().TempDir(), "credit.csv")
	s.Require().NoError(testkit.WriteCreditCSV(dataPath, 10, 7))

	rec := s.do(http.MethodPost, "/columns", map[string]string{"file_path": dataPath})
	s.Equal(http.StatusOK, rec.Code)

	payload := s.decode(rec)
	s.Equal(float64(4), payload["num_columns"])
	s.Contains(payload["detected_sensitive"], "gender")
}

func (s *ServerSuite) TestCreateSession() {
	dir := s.T().TempDir()
	modelPath := filepath.Join(dir, "model.json")
	dataPath := filepath.Join(dir, "credit.csv")
	s.Require().NoError(testkit.WriteModelFile(modelPath))
	s.Require().NoError(testkit.WriteCreditCSV(dataPath, 25, 7))

	rec := s.do(http.MethodPost, "/sessions", map[string]string{
		"model_path":   modelPath,
		"data_path":    dataPath,
		"label_column": "approved",
	})
	s.Equal(http.StatusOK, rec.Code)

	payload := s.decode(rec)
	s.Equal("success", payload["status"])
	s.NotEmpty(payload["session_id"])
	s.Equal(float64(25), payload["num_instances"])
	s.NotEmpty(payload["model_hash"])
	s.Equal(2, s.sessions.Count())
}

func (s *ServerSuite) TestCreateSessionMissingModel() {
	dataPath := filepath.Join(s.T().TempDir(), "credit.csv")
	s.Require().NoError(testkit.WriteCreditCSV(dataPath, 5, 7))

	rec := s.do(http.MethodPost, "/sessions", map[string]string{
		"model_path": filepath.Join(s.T().TempDir(), "absent.json"),
		"data_path":  dataPath,
	})
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ServerSuite) TestAnalyze() {
	rec := s.do(http.MethodPost, "/sessions/"+s.sessID+"/analyze", map[string]interface{}{
		"protected_values": map[string][]float64{"gender": {0, 1}},
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	payload := s.decode(rec)
	metrics := payload["qid_metrics"].(map[string]interface{})
	aggregate := metrics["aggregate"].(map[string]interface{})
	// The fixture flips every instance's margin by 4.
	s.InDelta(4.0, aggregate["mean"], 1e-9)
	s.InDelta(1.0, aggregate["fraction_above_threshold"], 1e-12)
	s.Equal(float64(40), metrics["num_analyzed"])
}

func (s *ServerSuite) TestAnalyzeRequiresProtectedValues() {
	rec := s.do(http.MethodPost, "/sessions/"+s.sessID+"/analyze", map[string]interface{}{})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerSuite) TestSearch() {
	rec := s.do(http.MethodPost, "/sessions/"+s.sessID+"/search", map[string]interface{}{
		"protected_values": map[string][]float64{"gender": {0, 1}},
		"num_iterations":   20,
		"num_neighbors":    5,
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	results := s.decode(rec)["search_results"].(map[string]interface{})
	s.Greater(results["num_found"], float64(0))

	instances := results["discriminatory_instances"].([]interface{})
	first := instances[0].(map[string]interface{})
	s.Equal("gender", first["attribute"])
	s.InDelta(4.0, first["score"], 1e-9)
}

func (s *ServerSuite) TestSearchExplicitZeroBudget() {
	// An explicit zero budget must not coalesce into the configured
	// default.
	rec := s.do(http.MethodPost, "/sessions/"+s.sessID+"/search", map[string]interface{}{
		"protected_values": map[string][]float64{"gender": {0, 1}},
		"num_iterations":   0,
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	results := s.decode(rec)["search_results"].(map[string]interface{})
	s.Equal(float64(0), results["num_found"])
}

func (s *ServerSuite) TestSearchIsReproducible() {
	body := map[string]interface{}{
		"protected_values": map[string][]float64{"gender": {0, 1}},
		"num_iterations":   15,
		"seed":             7,
	}
	first := s.do(http.MethodPost, "/sessions/"+s.sessID+"/search", body)
	second := s.do(http.MethodPost, "/sessions/"+s.sessID+"/search", body)
	s.Equal(first.Body.String(), second.Body.String())
}

func (s *ServerSuite) TestDebug() {
	rec := s.do(http.MethodPost, "/sessions/"+s.sessID+"/debug", map[string]interface{}{
		"protected_values": map[string][]float64{"gender": {0, 1}},
		"num_iterations":   20,
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	payload := s.decode(rec)
	layer := payload["layer_analysis"].(map[string]interface{})
	s.InDelta(4.0, layer["baseline_score"], 1e-9)

	neuron := payload["neuron_analysis"].(map[string]interface{})
	biased := neuron["biased_neurons"].([]interface{})
	top := biased[0].(map[string]interface{})
	// The fixture routes the gender signal through neuron 0.
	s.Equal(float64(0), top["neuron_idx"])
	s.InDelta(4.0, top["score"], 1e-9)
}

func (s *ServerSuite) TestDebugFairModelFindsNothing() {
	pool, labels := testkit.CreditPool(40, 7)
	sess, err := s.sessions.Create(testkit.FairNetwork(), pool, testkit.FeatureNames(), labels,
		[]string{"gender"}, core.ModelHash(""))
	s.Require().NoError(err)

	rec := s.do(http.MethodPost, "/sessions/"+sess.ID.String()+"/debug", map[string]interface{}{
		"protected_values": map[string][]float64{"gender": {0, 1}},
		"num_iterations":   20,
	})
	s.Require().Equal(http.StatusOK, rec.Code)

	payload := s.decode(rec)
	s.Equal(float64(0), payload["num_found"])
	s.NotContains(payload, "layer_analysis")
}

func (s *ServerSuite) TestActivations() {
	rec := s.do(http.MethodPost, "/sessions/"+s.sessID+"/activations", map[string]interface{}{
		"protected_values": map[string][]float64{"gender": {0, 1}},
		"max_samples":      15,
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	activations := s.decode(rec)["activations"].(map[string]interface{})
	s.Equal("pca", activations["method"])
	s.Equal(float64(15), activations["num_samples"])
	s.Len(activations["layers"], 2)
}

func (s *ServerSuite) TestHistoryWithoutRepository() {
	rec := s.do(http.MethodGet, "/sessions/"+s.sessID+"/history", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Len(s.decode(rec)["records"], 0)
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func TestResolveAttribute(t *testing.T) {
	pool, labels := testkit.CreditPool(5, 7)
	manager := session.NewManager(nil)
	sess, err := manager.Create(testkit.BiasedNetwork(), pool, testkit.FeatureNames(), labels,
		nil, core.ModelHash(""))
	require.NoError(t, err)

	attr, err := resolveAttribute(sess, map[string][]float64{"gender": {0, 1}})
	require.NoError(t, err)
	require.Equal(t, testkit.FeatureGender, attr.Index)
	require.Equal(t, []float64{0, 1}, attr.Values)

	_, err = resolveAttribute(sess, map[string][]float64{})
	require.Error(t, err)

	_, err = resolveAttribute(sess, map[string][]float64{"height": {0, 1}})
	require.Error(t, err)

	// Multiple attributes resolve to the alphabetically first key.
	attr, err = resolveAttribute(sess, map[string][]float64{
		"income": {0.1},
		"gender": {0, 1},
	})
	require.NoError(t, err)
	require.Equal(t, fairness.ProtectedAttribute{Name: "gender", Index: testkit.FeatureGender, Values: []float64{0, 1}}, attr)
}
