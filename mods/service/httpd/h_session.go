package httpd

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"github.com/jellydator/ttlcache/v3"
	"github.com/machbase/neo-bayes/mods/nums/bayes"
	"gonum.org/v1/gonum/mat"
)

// session serializes access to its regression; the bayes package is
// single-owner by contract, the lock makes this server that owner.
type session struct {
	sync.Mutex
	reg *bayes.LinearRegression
}

type createSessionReq struct {
	PriorMean      []float64   `json:"priorMean"`
	PriorCov       [][]float64 `json:"priorCov"`
	NoisePrecision float64     `json:"noisePrecision"`
}

func (svr *httpd) handleCreateSession(ctx *gin.Context) {
	tick := time.Now()
	rsp := gin.H{"success": false, "reason": "not specified"}

	req := createSessionReq{}
	if err := ctx.ShouldBind(&req); err != nil {
		rsp["reason"] = err.Error()
		ctx.JSON(http.StatusBadRequest, rsp)
		return
	}
	if len(req.PriorMean) != 2 || len(req.PriorCov) != 2 || len(req.PriorCov[0]) != 2 || len(req.PriorCov[1]) != 2 {
		rsp["reason"] = "priorMean must be a 2-vector, priorCov a 2x2 matrix"
		ctx.JSON(http.StatusBadRequest, rsp)
		return
	}
	if req.PriorCov[0][1] != req.PriorCov[1][0] {
		rsp["reason"] = "priorCov must be symmetric"
		ctx.JSON(http.StatusBadRequest, rsp)
		return
	}

	priorMean := mat.NewVecDense(2, []float64{req.PriorMean[0], req.PriorMean[1]})
	priorCov := mat.NewSymDense(2, []float64{
		req.PriorCov[0][0], req.PriorCov[0][1],
		req.PriorCov[1][0], req.PriorCov[1][1],
	})

	reg, err := bayes.New(priorMean, priorCov, req.NoisePrecision)
	if err != nil {
		rsp["reason"] = err.Error()
		ctx.JSON(statusOf(err), rsp)
		return
	}

	id, err := uuid.NewV4()
	if err != nil {
		rsp["reason"] = err.Error()
		ctx.JSON(http.StatusInternalServerError, rsp)
		return
	}
	svr.sessions.Set(id.String(), &session{reg: reg}, ttlcache.DefaultTTL)

	rsp["success"] = true
	rsp["reason"] = "success"
	rsp["id"] = id.String()
	rsp["elapse"] = time.Since(tick).String()
	ctx.JSON(http.StatusOK, rsp)
}

func (svr *httpd) handleGetSession(ctx *gin.Context) {
	tick := time.Now()
	rsp := gin.H{"success": false, "reason": "not specified"}

	sess := svr.session(ctx, rsp)
	if sess == nil {
		return
	}
	sess.Lock()
	mean, cov := posteriorOf(sess.reg)
	noisePrecision := sess.reg.NoisePrecision()
	sess.Unlock()

	rsp["success"] = true
	rsp["reason"] = "success"
	rsp["mean"] = mean
	rsp["covariance"] = cov
	rsp["noisePrecision"] = noisePrecision
	rsp["elapse"] = time.Since(tick).String()
	ctx.JSON(http.StatusOK, rsp)
}

func (svr *httpd) handleDeleteSession(ctx *gin.Context) {
	rsp := gin.H{"success": false, "reason": "not specified"}

	id := ctx.Param("id")
	if !svr.sessions.Has(id) {
		rsp["reason"] = "session not found"
		ctx.JSON(http.StatusNotFound, rsp)
		return
	}
	svr.sessions.Delete(id)

	rsp["success"] = true
	rsp["reason"] = "success"
	ctx.JSON(http.StatusOK, rsp)
}

type updateReq struct {
	X []float64 `json:"x"`
	T []float64 `json:"t"`
}

func (svr *httpd) handleUpdateSession(ctx *gin.Context) {
	tick := time.Now()
	rsp := gin.H{"success": false, "reason": "not specified"}

	req := updateReq{}
	if err := ctx.ShouldBind(&req); err != nil {
		rsp["reason"] = err.Error()
		ctx.JSON(http.StatusBadRequest, rsp)
		return
	}
	sess := svr.session(ctx, rsp)
	if sess == nil {
		return
	}

	sess.Lock()
	err := sess.reg.Update(req.X, req.T)
	var mean []float64
	var cov [][]float64
	if err == nil {
		mean, cov = posteriorOf(sess.reg)
	}
	sess.Unlock()

	if err != nil {
		rsp["reason"] = err.Error()
		ctx.JSON(statusOf(err), rsp)
		return
	}

	rsp["success"] = true
	rsp["reason"] = "success"
	rsp["mean"] = mean
	rsp["covariance"] = cov
	rsp["elapse"] = time.Since(tick).String()
	ctx.JSON(http.StatusOK, rsp)
}

type boundsReq struct {
	X         []float64 `json:"x"`
	NumStdevs float64   `json:"numStdevs"`
}

func (svr *httpd) handleBounds(ctx *gin.Context) {
	tick := time.Now()
	rsp := gin.H{"success": false, "reason": "not specified"}

	req := boundsReq{}
	if err := ctx.ShouldBind(&req); err != nil {
		rsp["reason"] = err.Error()
		ctx.JSON(http.StatusBadRequest, rsp)
		return
	}
	sess := svr.session(ctx, rsp)
	if sess == nil {
		return
	}

	sess.Lock()
	bounds := sess.reg.PredictionBound(req.X, req.NumStdevs)
	sess.Unlock()

	rsp["success"] = true
	rsp["reason"] = "success"
	rsp["bounds"] = bounds
	rsp["elapse"] = time.Since(tick).String()
	ctx.JSON(http.StatusOK, rsp)
}

type sampleReq struct {
	Count int `json:"count"`
}

func (svr *httpd) handleSampleWeights(ctx *gin.Context) {
	tick := time.Now()
	rsp := gin.H{"success": false, "reason": "not specified"}

	req := sampleReq{}
	if err := ctx.ShouldBind(&req); err != nil {
		rsp["reason"] = err.Error()
		ctx.JSON(http.StatusBadRequest, rsp)
		return
	}
	sess := svr.session(ctx, rsp)
	if sess == nil {
		return
	}

	sess.Lock()
	weights, err := sess.reg.SampleWeights(req.Count)
	sess.Unlock()

	if err != nil {
		rsp["reason"] = err.Error()
		ctx.JSON(statusOf(err), rsp)
		return
	}

	rsp["success"] = true
	rsp["reason"] = "success"
	rsp["weights"] = weights
	rsp["elapse"] = time.Since(tick).String()
	ctx.JSON(http.StatusOK, rsp)
}

type generateReq struct {
	X []float64 `json:"x"`
}

func (svr *httpd) handleGenerate(ctx *gin.Context) {
	tick := time.Now()
	rsp := gin.H{"success": false, "reason": "not specified"}

	req := generateReq{}
	if err := ctx.ShouldBind(&req); err != nil {
		rsp["reason"] = err.Error()
		ctx.JSON(http.StatusBadRequest, rsp)
		return
	}
	sess := svr.session(ctx, rsp)
	if sess == nil {
		return
	}

	sess.Lock()
	ts := sess.reg.GenerateObservation(req.X)
	sess.Unlock()

	rsp["success"] = true
	rsp["reason"] = "success"
	rsp["t"] = ts
	rsp["elapse"] = time.Since(tick).String()
	ctx.JSON(http.StatusOK, rsp)
}

// session resolves the :id path parameter, replying 404 by itself when
// the session does not exist (or its lease expired).
func (svr *httpd) session(ctx *gin.Context, rsp gin.H) *session {
	id := ctx.Param("id")
	item := svr.sessions.Get(id)
	if item == nil {
		rsp["reason"] = "session not found"
		ctx.JSON(http.StatusNotFound, rsp)
		return nil
	}
	return item.Value()
}

func posteriorOf(reg *bayes.LinearRegression) ([]float64, [][]float64) {
	mean := []float64{reg.Mean().AtVec(0), reg.Mean().AtVec(1)}
	cov := [][]float64{
		{reg.Covariance().At(0, 0), reg.Covariance().At(0, 1)},
		{reg.Covariance().At(1, 0), reg.Covariance().At(1, 1)},
	}
	return mean, cov
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, bayes.ErrInvalidDimensions),
		errors.Is(err, bayes.ErrNoisePrecision),
		errors.Is(err, bayes.ErrNotPositiveDefinite):
		return http.StatusBadRequest
	case errors.Is(err, bayes.ErrSingularMatrix):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
