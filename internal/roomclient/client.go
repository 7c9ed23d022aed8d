package roomclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sieffosman/hotel-dashboard/internal/config"
	"github.com/sieffosman/hotel-dashboard/internal/domain"
)

const (
	opListRooms       = "list_rooms"
	opGetRoom         = "get_room"
	opCreateRoom      = "create_room"
	opUpdateRoom      = "update_room"
	opDeleteRoom      = "delete_room"
	opUploadTempImage = "upload_temp_image"
	opFinalizeImage   = "finalize_image"
	opRegeneratePDF   = "regenerate_pdf"
	opDownloadPDF     = "download_pdf"
)

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Client is the typed room API client. It is safe for concurrent use and
// holds no room state between calls.
type Client struct {
	httpClient  *resty.Client
	mediaBase   string
	tempSegment string
	limiter     *rate.Limiter
	metrics     *Metrics
	logger      *zap.Logger
}

// New creates a Client for the API described by cfg. metrics may be nil.
func New(cfg config.APIConfig, logger *zap.Logger, metrics *Metrics) *Client {
	c := &Client{
		mediaBase:   cfg.MediaBaseURL,
		tempSegment: cfg.TempImageSegment,
		metrics:     metrics,
		logger:      logger,
	}
	if c.mediaBase == "" {
		c.mediaBase = cfg.BaseURL
	}
	if c.tempSegment == "" {
		c.tempSegment = config.DefaultTempImageSegment
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	c.httpClient = resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(retryIdempotent).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{logger.Sugar()}).
		OnBeforeRequest(c.beforeRequest)

	return c
}

// restyLogger routes resty's own messages through zap at debug level;
// failures are already logged by check.
type restyLogger struct {
	s *zap.SugaredLogger
}

func (l restyLogger) Errorf(format string, v ...interface{}) { l.s.Debugf(format, v...) }
func (l restyLogger) Warnf(format string, v ...interface{})  { l.s.Debugf(format, v...) }
func (l restyLogger) Debugf(format string, v ...interface{}) { l.s.Debugf(format, v...) }

// retryIdempotent retries GETs on network errors and 5xx responses only.
func retryIdempotent(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
		return false
	}
	return err != nil || r.StatusCode() >= http.StatusInternalServerError
}

func (c *Client) beforeRequest(_ *resty.Client, r *resty.Request) error {
	if r.Header.Get(RequestIDHeader) == "" {
		r.SetHeader(RequestIDHeader, uuid.NewString())
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(r.Context()); err != nil {
			return err
		}
	}
	return nil
}

// TempImageSegment is the path prefix of the temporary upload namespace.
func (c *Client) TempImageSegment() string { return c.tempSegment }

// IsTempImage reports whether imageURL is still in the temporary namespace.
func (c *Client) IsTempImage(imageURL string) bool {
	return domain.IsTempImage(imageURL, c.tempSegment)
}

// ResolveImageURL turns a server-relative image_url into a displayable
// URL on the media host. Absolute URLs and "" are returned unchanged.
func (c *Client) ResolveImageURL(imageURL string) string {
	if imageURL == "" {
		return ""
	}
	if u, err := url.Parse(imageURL); err == nil && u.IsAbs() {
		return imageURL
	}
	return strings.TrimRight(c.mediaBase, "/") + "/" + strings.TrimLeft(imageURL, "/")
}

// ListRooms fetches every room. A payload that is not an array is
// normalised to an empty, Malformed list rather than an error.
func (c *Client) ListRooms(ctx context.Context) (_ *domain.RoomList, err error) {
	defer c.metrics.observe(opListRooms, time.Now(), &err)

	resp, err := c.httpClient.R().SetContext(ctx).Get("/rooms")
	if err = c.check(opListRooms, 0, resp, err); err != nil {
		return nil, err
	}

	list := decodeRoomList(resp.Body())
	if list.Malformed {
		c.logger.Warn("Room API returned a non-array room list, using empty list",
			zap.Int("body_bytes", len(resp.Body())),
		)
	}
	if len(list.Invalid) > 0 {
		c.logger.Warn("Room API returned invalid room entries",
			zap.Ints("indices", list.Invalid),
		)
	}
	return list, nil
}

// GetRoom fetches one room.
func (c *Client) GetRoom(ctx context.Context, id int) (_ *domain.Room, err error) {
	defer c.metrics.observe(opGetRoom, time.Now(), &err)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", strconv.Itoa(id)).
		Get("/rooms/{id}")
	if err = c.check(opGetRoom, id, resp, err); err != nil {
		return nil, err
	}
	return c.room(opGetRoom, resp)
}

// CreateRoom validates the draft and posts it. A ValidationError is
// returned without touching the network.
func (c *Client) CreateRoom(ctx context.Context, draft domain.RoomDraft) (_ *domain.Room, err error) {
	defer c.metrics.observe(opCreateRoom, time.Now(), &err)

	if err = draft.Validate(); err != nil {
		return nil, err
	}
	body := draft.Fields()

	c.logger.Info("Creating room",
		zap.String("name", draft.Name),
		zap.Int("facilities_count", *body.FacilitiesCount),
		zap.Bool("has_image", body.ImageURL != nil),
	)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		Post("/rooms")
	if err = c.check(opCreateRoom, 0, resp, err); err != nil {
		return nil, err
	}
	return c.room(opCreateRoom, resp)
}

// UpdateRoom sends a partial update; nil fields are left untouched
// server-side.
func (c *Client) UpdateRoom(ctx context.Context, id int, patch domain.RoomFields) (_ *domain.Room, err error) {
	defer c.metrics.observe(opUpdateRoom, time.Now(), &err)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", strconv.Itoa(id)).
		SetBody(patch).
		Patch("/rooms/{id}")
	if err = c.check(opUpdateRoom, id, resp, err); err != nil {
		return nil, err
	}
	return c.room(opUpdateRoom, resp)
}

// DeleteRoom deletes a room. Deleting an id that is already gone yields
// a NotFoundError.
func (c *Client) DeleteRoom(ctx context.Context, id int) (err error) {
	defer c.metrics.observe(opDeleteRoom, time.Now(), &err)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", strconv.Itoa(id)).
		Delete("/rooms/{id}")
	if err = c.check(opDeleteRoom, id, resp, err); err != nil {
		return err
	}
	c.logger.Info("Room deleted", zap.Int("room_id", id))
	return nil
}

// UploadTempImage stores image bytes in the temporary namespace and
// returns their reference. The upload is not linked to any room yet.
func (c *Client) UploadTempImage(ctx context.Context, filename string, image io.Reader) (_ string, err error) {
	defer c.metrics.observe(opUploadTempImage, time.Now(), &err)

	if filename == "" {
		filename = "image"
	}
	var out struct {
		TempImageURL string `json:"tempImageUrl"`
	}
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFileReader("image", filename, image).
		Post("/upload/temp-room-image")
	if err = c.check(opUploadTempImage, 0, resp, err); err != nil {
		return "", err
	}
	if jerr := json.Unmarshal(resp.Body(), &out); jerr != nil || out.TempImageURL == "" {
		err = &TransportError{
			Op:         opUploadTempImage,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("%w: missing tempImageUrl", ErrMalformedResponse),
		}
		return "", err
	}

	c.logger.Info("Temporary room image uploaded",
		zap.String("filename", filename),
		zap.String("temp_image_url", out.TempImageURL),
	)
	return out.TempImageURL, nil
}

// FinalizeImage moves a temporary image into the permanent namespace of
// roomID. Only temp-namespaced references are accepted.
func (c *Client) FinalizeImage(ctx context.Context, roomID int, tempImageURL string) (err error) {
	defer c.metrics.observe(opFinalizeImage, time.Now(), &err)

	if !c.IsTempImage(tempImageURL) {
		return domain.NewValidationError("image_url", "image is not a temporary upload")
	}
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", strconv.Itoa(roomID)).
		SetBody(map[string]string{"tempImageUrl": tempImageURL}).
		Post("/rooms/{id}/finalize-image")
	if err = c.check(opFinalizeImage, roomID, resp, err); err != nil {
		return err
	}
	c.logger.Info("Room image finalized",
		zap.Int("room_id", roomID),
		zap.String("temp_image_url", tempImageURL),
	)
	return nil
}

// RegeneratePDF asks the API to refresh the stored summary of a room.
// No body is expected back.
func (c *Client) RegeneratePDF(ctx context.Context, roomID int) (err error) {
	defer c.metrics.observe(opRegeneratePDF, time.Now(), &err)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", strconv.Itoa(roomID)).
		Post("/rooms/{id}/generate-pdf")
	return c.check(opRegeneratePDF, roomID, resp, err)
}

// DownloadPDF regenerates the summary of a room and returns its bytes.
func (c *Client) DownloadPDF(ctx context.Context, roomID int) (_ []byte, err error) {
	defer c.metrics.observe(opDownloadPDF, time.Now(), &err)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", strconv.Itoa(roomID)).
		SetHeader("Accept", "application/pdf").
		Post("/rooms/{id}/generate-pdf")
	if err = c.check(opDownloadPDF, roomID, resp, err); err != nil {
		return nil, err
	}
	if len(resp.Body()) == 0 {
		err = &TransportError{
			Op:         opDownloadPDF,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("%w: empty pdf", ErrMalformedResponse),
		}
		return nil, err
	}
	return resp.Body(), nil
}

// check maps a resty result to the error taxonomy. id > 0 turns a 404
// into a NotFoundError.
func (c *Client) check(op string, id int, resp *resty.Response, err error) error {
	if err != nil {
		status := 0
		if resp != nil && resp.RawResponse != nil {
			status = resp.StatusCode()
		}
		c.logger.Error("Room API call failed",
			zap.String("op", op),
			zap.Int("room_id", id),
			zap.Error(err),
		)
		return &TransportError{Op: op, StatusCode: status, Err: err}
	}
	if !resp.IsError() {
		return nil
	}
	if resp.StatusCode() == http.StatusNotFound && id > 0 {
		return &NotFoundError{Op: op, ID: id}
	}
	detail := errorDetail(resp.Body())
	c.logger.Error("Room API returned error",
		zap.String("op", op),
		zap.Int("room_id", id),
		zap.Int("status_code", resp.StatusCode()),
		zap.String("detail", detail),
	)
	return &TransportError{Op: op, StatusCode: resp.StatusCode(), Detail: detail}
}

func (c *Client) room(op string, resp *resty.Response) (*domain.Room, error) {
	r, err := decodeRoom(resp.Body())
	if err != nil {
		c.logger.Error("Failed to decode room", zap.String("op", op), zap.Error(err))
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode(), Err: err}
	}
	return r, nil
}
