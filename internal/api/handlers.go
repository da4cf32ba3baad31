package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"fairlens/adapters/ingest"
	"fairlens/adapters/mlp"
	"fairlens/adapters/rng"
	"fairlens/domain/fairness"
	"fairlens/internal"
	"fairlens/internal/causal"
	apperrors "fairlens/internal/errors"
	"fairlens/internal/projection"
	"fairlens/internal/qid"
	"fairlens/internal/search"
	"fairlens/internal/session"
)

// ColumnsRequest asks for column names of a dataset file for dropdown
// selection.
type ColumnsRequest struct {
	FilePath string `json:"file_path" binding:"required"`
}

// CreateSessionRequest loads a pretrained model and its evaluation dataset
// into a new audit session.
type CreateSessionRequest struct {
	ModelPath   string `json:"model_path" binding:"required"`
	DataPath    string `json:"data_path" binding:"required"`
	LabelColumn string `json:"label_column"`
}

// AnalyzeRequest runs batch QID analysis over the session pool.
type AnalyzeRequest struct {
	ProtectedValues map[string][]float64 `json:"protected_values" binding:"required"`
	MaxSamples      int                  `json:"max_samples"`
}

// SearchRequest runs the two-phase discriminatory instance search. Budget
// fields are pointers so an explicit zero is distinguishable from an absent
// field; absent budgets fall back to the configured defaults.
type SearchRequest struct {
	ProtectedValues map[string][]float64 `json:"protected_values" binding:"required"`
	NumIterations   *int                 `json:"num_iterations"`
	NumNeighbors    *int                 `json:"num_neighbors"`
	Seed            *int64               `json:"seed"`
}

// ActivationsRequest computes the internal-space projection payload.
type ActivationsRequest struct {
	ProtectedValues map[string][]float64 `json:"protected_values"`
	MaxSamples      int                  `json:"max_samples"`
}

func (s *Server) handleColumns(c *gin.Context) {
	var req ColumnsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, apperrors.InvalidInput(err.Error()))
		return
	}

	frame, err := ingest.NewDataReader(req.FilePath).Read()
	if err != nil {
		s.renderError(c, apperrors.Wrap(err, "failed to read dataset file"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":             "success",
		"columns":            frame.Headers,
		"num_columns":        len(frame.Headers),
		"sample_data":        frame.SampleRows(3),
		"detected_sensitive": ingest.DetectSensitiveColumns(frame.Headers),
	})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, apperrors.InvalidInput(err.Error()))
		return
	}

	network, err := mlp.LoadNetwork(req.ModelPath)
	if err != nil {
		s.renderError(c, err)
		return
	}

	frame, err := ingest.NewDataReader(req.DataPath).Read()
	if err != nil {
		s.renderError(c, apperrors.Wrap(err, "failed to read dataset file"))
		return
	}
	instances, labels, featureNames, err := frame.FeatureMatrix(req.LabelColumn)
	if err != nil {
		s.renderError(c, err)
		return
	}
	pool, err := fairness.NewCandidatePool(instances)
	if err != nil {
		s.renderError(c, err)
		return
	}

	detected := ingest.DetectSensitiveColumns(featureNames)
	sess, err := s.sessions.Create(network, pool, featureNames, labels, detected, network.Hash())
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":             "success",
		"session_id":         sess.ID.String(),
		"num_features":       pool.Width(),
		"num_instances":      pool.Len(),
		"feature_names":      featureNames,
		"detected_sensitive": detected,
		"hidden_layers":      network.HiddenLayerSizes(),
		"model_hash":         network.Hash().String(),
	})
}

func (s *Server) handleSessionInfo(c *gin.Context) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":             "success",
		"session_id":         sess.ID.String(),
		"num_features":       sess.Pool.Width(),
		"num_instances":      sess.Pool.Len(),
		"feature_names":      sess.FeatureNames,
		"detected_sensitive": sess.Detected,
		"hidden_layers":      sess.Oracle.HiddenLayerSizes(),
		"model_hash":         sess.ModelHash.String(),
		"created_at":         sess.CreatedAt,
	})
}

func (s *Server) handleSessionHistory(c *gin.Context) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	records, err := s.sessions.History(c.Request.Context(), sess.ID, 50)
	if err != nil {
		s.renderError(c, apperrors.DatabaseError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "records": records})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, apperrors.InvalidInput(err.Error()))
		return
	}
	attr, err := resolveAttribute(sess, req.ProtectedValues)
	if err != nil {
		s.renderError(c, err)
		return
	}

	analyzer, err := qid.NewAnalyzer(sess.Oracle, s.cfg.Analysis.FairnessThreshold)
	if err != nil {
		s.renderError(c, err)
		return
	}

	maxSamples := req.MaxSamples
	if maxSamples <= 0 || maxSamples > s.cfg.Analysis.MaxSamples {
		maxSamples = s.cfg.Analysis.MaxSamples
	}
	instances := sess.Pool.Instances()
	if len(instances) > maxSamples {
		instances = instances[:maxSamples]
	}

	metrics, err := analyzer.BatchAnalyze(instances, attr)
	if err != nil {
		s.renderError(c, err)
		return
	}
	s.persist(c, sess, "analyze", metrics)
	c.JSON(http.StatusOK, gin.H{"status": "success", "qid_metrics": metrics})
}

func (s *Server) handleSearch(c *gin.Context) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, apperrors.InvalidInput(err.Error()))
		return
	}
	attr, err := resolveAttribute(sess, req.ProtectedValues)
	if err != nil {
		s.renderError(c, err)
		return
	}

	results, err := s.runSearch(c, sess, attr, req)
	if err != nil {
		s.renderError(c, err)
		return
	}

	payload := gin.H{"discriminatory_instances": results, "num_found": len(results)}
	s.persist(c, sess, "search", payload)
	c.JSON(http.StatusOK, gin.H{"status": "success", "search_results": payload})
}

func (s *Server) handleDebug(c *gin.Context) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, apperrors.InvalidInput(err.Error()))
		return
	}
	attr, err := resolveAttribute(sess, req.ProtectedValues)
	if err != nil {
		s.renderError(c, err)
		return
	}

	results, err := s.runSearch(c, sess, attr, req)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if len(results) == 0 {
		// A clean model is a valid outcome, not a fault.
		c.JSON(http.StatusOK, gin.H{
			"status":    "success",
			"num_found": 0,
			"message":   "no discriminatory instances found; nothing to localize",
		})
		return
	}

	debugger, err := causal.NewDebugger(sess.Oracle, s.cfg.Analysis.TopKNeurons)
	if err != nil {
		s.renderError(c, err)
		return
	}
	layerAnalysis, err := debugger.LocalizeLayer(results)
	if err != nil {
		s.renderError(c, err)
		return
	}
	neuronAnalysis, err := debugger.LocalizeNeurons(layerAnalysis.BiasedLayer.LayerIndex, results)
	if err != nil {
		s.renderError(c, err)
		return
	}

	payload := gin.H{"layer_analysis": layerAnalysis, "neuron_analysis": neuronAnalysis}
	s.persist(c, sess, "debug", payload)
	c.JSON(http.StatusOK, gin.H{
		"status":          "success",
		"num_found":       len(results),
		"layer_analysis":  layerAnalysis,
		"neuron_analysis": neuronAnalysis,
	})
}

func (s *Server) handleActivations(c *gin.Context) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	var req ActivationsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.renderError(c, apperrors.InvalidInput(err.Error()))
			return
		}
	}

	var attr fairness.ProtectedAttribute
	if len(req.ProtectedValues) > 0 {
		attr, err = resolveAttribute(sess, req.ProtectedValues)
	} else {
		attr, err = defaultAttribute(sess)
	}
	if err != nil {
		s.renderError(c, err)
		return
	}

	analyzer, err := projection.NewAnalyzer(sess.Oracle)
	if err != nil {
		s.renderError(c, err)
		return
	}
	result, err := analyzer.Project(c.Request.Context(), sess.Pool, attr, sess.Labels, req.MaxSamples)
	if err != nil {
		s.renderError(c, err)
		return
	}
	s.persist(c, sess, "activations", result)
	c.JSON(http.StatusOK, gin.H{"status": "success", "activations": result})
}

// runSearch executes the two-phase search with request overrides falling
// back to configured defaults.
func (s *Server) runSearch(c *gin.Context, sess *session.AuditSession, attr fairness.ProtectedAttribute, req SearchRequest) ([]fairness.DiscriminatoryInstance, error) {
	analyzer, err := qid.NewAnalyzer(sess.Oracle, s.cfg.Analysis.FairnessThreshold)
	if err != nil {
		return nil, err
	}
	engine, err := search.NewEngine(sess.Oracle, analyzer, rng.NewStreamAdapter())
	if err != nil {
		return nil, err
	}

	params := search.Params{
		GlobalIterations:  s.cfg.Analysis.GlobalIterations,
		LocalNeighbors:    s.cfg.Analysis.LocalNeighbors,
		Seed:              s.cfg.Analysis.Seed,
		PerturbationScale: s.cfg.Analysis.PerturbationScale,
		DedupEpsilon:      s.cfg.Analysis.DedupEpsilon,
	}
	if req.NumIterations != nil {
		params.GlobalIterations = *req.NumIterations
	}
	if req.NumNeighbors != nil {
		params.LocalNeighbors = *req.NumNeighbors
	}
	if req.Seed != nil {
		params.Seed = *req.Seed
	}
	return engine.Search(c.Request.Context(), sess.Pool, attr, params)
}

// persist stores the result when a repository is configured; persistence
// failures never fail the request.
func (s *Server) persist(c *gin.Context, sess *session.AuditSession, kind string, payload interface{}) {
	if err := s.sessions.RecordResult(c.Request.Context(), sess.ID, kind, payload); err != nil {
		internal.DefaultLogger.Warn("failed to persist %s result for session %s: %v", kind, sess.ID.String(), err)
	}
}

// resolveAttribute picks the first configured protected attribute (map keys
// sorted for determinism) and resolves it against the session's feature
// ordering.
func resolveAttribute(sess *session.AuditSession, protectedValues map[string][]float64) (fairness.ProtectedAttribute, error) {
	if len(protectedValues) == 0 {
		return fairness.ProtectedAttribute{}, apperrors.InvalidInput("protected_values must name at least one attribute")
	}
	names := make([]string, 0, len(protectedValues))
	for name := range protectedValues {
		names = append(names, name)
	}
	sort.Strings(names)

	name := names[0]
	values := protectedValues[name]
	if len(values) == 0 {
		return fairness.ProtectedAttribute{}, apperrors.InvalidInput("attribute " + name + " has no candidate values")
	}
	return sess.Attribute(name, values)
}

// defaultAttribute falls back to the first detected sensitive column, then
// to feature 0, for requests that only need a coloring dimension.
func defaultAttribute(sess *session.AuditSession) (fairness.ProtectedAttribute, error) {
	if len(sess.Detected) > 0 {
		return sess.Attribute(sess.Detected[0], nil)
	}
	if len(sess.FeatureNames) > 0 {
		return sess.Attribute(sess.FeatureNames[0], nil)
	}
	return fairness.ProtectedAttribute{Index: 0}, nil
}
