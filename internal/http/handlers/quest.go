package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	httpMW "github.com/yungbote/tastequest-backend/internal/http/middleware"
	"github.com/yungbote/tastequest-backend/internal/http/response"
	"github.com/yungbote/tastequest-backend/internal/modules/quest/scan"
	"github.com/yungbote/tastequest-backend/internal/platform/ctxutil"
	"github.com/yungbote/tastequest-backend/internal/platform/logger"
	"github.com/yungbote/tastequest-backend/internal/services"
)

type QuestHandler struct {
	log   *logger.Logger
	quest services.QuestService
}

func NewQuestHandler(log *logger.Logger, quest services.QuestService) *QuestHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &QuestHandler{log: log.With("handler", "QuestHandler"), quest: quest}
}

type collectStampRequest struct {
	GuestID       string `json:"guest_id"`
	ZoneName      string `json:"zone_name"`
	Source        string `json:"source"`
	DeviceProofID string `json:"device_proof_id"`
	GuestToken    string `json:"guest_token"`
}

// POST /api/quest/stamps
func (h *QuestHandler) CollectStamp(c *gin.Context) {
	var req collectStampRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ctxutil.AttachGuest(c.Request.Context(), req.GuestID)
	token := strings.TrimSpace(req.GuestToken)
	if token == "" {
		token = c.GetString(httpMW.GuestTokenKey)
	}
	out, err := h.quest.CollectStamp(c.Request.Context(), scan.Event{
		GuestID:     req.GuestID,
		ZoneName:    req.ZoneName,
		Source:      req.Source,
		DeviceProof: req.DeviceProofID,
		GuestToken:  token,
	})
	if err != nil {
		httpMW.SetScanOutcome(c, scanFailureOutcome(err))
		respondErr(c, err, "")
		return
	}
	if out.Duplicate {
		httpMW.SetScanOutcome(c, "duplicate")
	} else {
		httpMW.SetScanOutcome(c, "recorded")
	}
	response.RespondOK(c, out)
}

// GET /api/quest/guests/:guest_id/progress
func (h *QuestHandler) GetProgress(c *gin.Context) {
	p, err := h.quest.GetProgress(c.Request.Context(), c.Param("guest_id"))
	if err != nil {
		respondErr(c, err, "progress_not_found")
		return
	}
	response.RespondOK(c, p)
}

// GET /api/quest/guests/:guest_id/stamps
func (h *QuestHandler) ListStamps(c *gin.Context) {
	rows, err := h.quest.ListStamps(c.Request.Context(), c.Param("guest_id"))
	if err != nil {
		respondErr(c, err, "")
		return
	}
	response.RespondOK(c, gin.H{"stamps": rows})
}

// GET /api/quest/leaderboard?limit=N
func (h *QuestHandler) Leaderboard(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		limit = n
	}
	entries, err := h.quest.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		respondErr(c, err, "")
		return
	}
	response.RespondOK(c, gin.H{"entries": entries})
}

type verifyProofRequest struct {
	Proof string `json:"proof"`
}

// POST /api/quest/proofs/verify
func (h *QuestHandler) VerifyProof(c *gin.Context) {
	var req verifyProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res := h.quest.VerifyDeviceProof(c.Request.Context(), req.Proof)
	if res.Valid {
		httpMW.SetScanOutcome(c, "valid")
	} else {
		httpMW.SetScanOutcome(c, "invalid")
	}
	response.RespondOK(c, res)
}

// GET /api/quest/zones
func (h *QuestHandler) ListZones(c *gin.Context) {
	response.RespondOK(c, h.quest.ListZones(c.Request.Context()))
}
