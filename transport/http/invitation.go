package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/rentoso/errors"
	"github.com/kochabx/rentoso/invite"
	"github.com/kochabx/rentoso/transport/http/response"
)

// sendInvitation 公司 id 取自当前会话，忽略请求体中的值
func (a *API) sendInvitation(c *gin.Context) {
	var req invite.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.GinJSONE(c, errors.InvalidInput("malformed request body").WithCause(err))
		return
	}
	req.CompanyID = c.GetString(companyKey)
	id, err := a.invites.Send(c.Request.Context(), req)
	if err != nil {
		response.GinJSONE(c, err)
		return
	}
	response.GinJSON(c, gin.H{"id": id})
}

func (a *API) pendingInvitations(c *gin.Context) {
	items, err := a.invites.Pending(c.Request.Context(), c.GetString(companyKey))
	if err != nil {
		response.GinJSONE(c, err)
		return
	}
	response.GinJSON(c, items)
}

func (a *API) cancelInvitation(c *gin.Context) {
	if err := a.invites.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		response.GinJSONE(c, err)
		return
	}
	response.GinJSON(c, gin.H{"id": c.Param("id"), "status": invite.StatusCancelled})
}

func (a *API) verifyInvitation(c *gin.Context) {
	inv, company, err := a.invites.Verify(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.GinJSONE(c, err)
		return
	}
	response.GinJSON(c, gin.H{"invitation": inv, "company": company})
}

// invitationQR ?size= 像素边长
func (a *API) invitationQR(c *gin.Context) {
	size, _ := strconv.Atoi(c.Query("size"))
	png, err := a.invites.QRCode(c.Param("token"), size)
	if err != nil {
		response.GinJSONE(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
