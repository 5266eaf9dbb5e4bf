package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/fundtrack/internal/fund/category"
	"github.com/smallbiznis/fundtrack/internal/fund/domain"
	"github.com/smallbiznis/fundtrack/pkg/db/pagination"
)

func (s *Server) ListFunds(c *gin.Context) {
	var query struct {
		Category  string `form:"category"`
		Status    string `form:"status"`
		PageSize  string `form:"page_size"`
		PageToken string `form:"page_token"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	pageSize, err := parseOptionalInt(query.PageSize)
	if err != nil {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "invalid page_size"))
		return
	}

	resp, err := s.funds.List(c.Request.Context(), domain.ListRequest{
		Category: strings.TrimSpace(query.Category),
		Status:   strings.TrimSpace(query.Status),
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  pageSize,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetFund(c *gin.Context) {
	resp, err := s.funds.GetByFundID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetFundHistory(c *gin.Context) {
	from, err := parseOptionalMonth(c.Query("fromDate"))
	if err != nil {
		AbortWithError(c, newValidationError("fromDate", "invalid_from_date", "invalid fromDate"))
		return
	}
	to, err := parseOptionalMonth(c.Query("toDate"))
	if err != nil {
		AbortWithError(c, newValidationError("toDate", "invalid_to_date", "invalid toDate"))
		return
	}

	resp, err := s.funds.History(c.Request.Context(), domain.HistoryRequest{
		FundID: strings.TrimSpace(c.Param("id")),
		From:   from,
		To:     to,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCategorySnapshots(c *gin.Context) {
	month, err := parseOptionalMonth(c.Query("timestamp"))
	if err != nil {
		AbortWithError(c, newValidationError("timestamp", "invalid_timestamp", "invalid timestamp"))
		return
	}

	resp, err := s.funds.ByCategory(c.Request.Context(), domain.CategoryRequest{
		Category: c.Param("category"),
		Month:    month,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": category.All()})
}

func (s *Server) GetStats(c *gin.Context) {
	resp, err := s.funds.Stats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
