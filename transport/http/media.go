package http

import (
	"path"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/rentoso/errors"
	"github.com/kochabx/rentoso/transport/http/response"
)

const (
	defaultBucket  = "propiedades"
	maxImageSize   = 10 << 20
	imageFormField = "file"
)

// uploadImage 对象路径为 <empresa_id>/<propiedad_id>/<毫秒时间戳><扩展名>
func (a *API) uploadImage(c *gin.Context) {
	fh, err := c.FormFile(imageFormField)
	if err != nil {
		response.GinJSONE(c, errors.InvalidInput("missing %s field", imageFormField).WithCause(err))
		return
	}
	if fh.Size > maxImageSize {
		response.GinJSONE(c, errors.InvalidInput("image exceeds %d bytes", maxImageSize))
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.GinJSONE(c, errors.InvalidInput("unreadable upload").WithCause(err))
		return
	}
	defer f.Close()

	name := path.Join(
		c.GetString(companyKey),
		c.Param("id"),
		strconv.FormatInt(time.Now().UnixMilli(), 10)+path.Ext(fh.Filename),
	)
	if err := a.media.Upload(c.Request.Context(), a.bucket, name, f, fh.Size, fh.Header.Get("Content-Type")); err != nil {
		response.GinJSONE(c, errors.Wrap(err, errors.CodeFetchFailed, "upload image"))
		return
	}
	response.GinJSON(c, gin.H{"path": name, "url": a.media.PublicURL(a.bucket, name)})
}
