package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/festa/internal/models"
	"github.com/desertthunder/festa/internal/shared"
)

// RoomDTO is a room as returned by the list endpoints.
type RoomDTO struct {
	ChatRoomID          int64  `json:"chatRoomId"`
	Name                string `json:"name"`
	Participation       int    `json:"participation"`
	Type                string `json:"type"`
	CreatedFrom         string `json:"createdFrom"`
	CreatedFromID       *int64 `json:"createdFromId"`
	NotReadMessageCount int    `json:"notReadMessageCount"`
	LastMessageTime     string `json:"lastMessageTime"`
	LastMessageText     string `json:"lastMessageText"`
	Category            string `json:"category"`
	Information         string `json:"information"`
}

// Room converts the DTO to a [models.Room]. Counts below zero are clamped.
func (d RoomDTO) Room() models.Room {
	room := models.Room{
		ID:               d.ChatRoomID,
		Name:             d.Name,
		Kind:             models.RoomKind(strings.ToUpper(d.Type)),
		Origin:           models.RoomOrigin(strings.ToUpper(d.CreatedFrom)),
		OriginPostID:     d.CreatedFromID,
		ParticipantCount: max(d.Participation, 0),
		UnreadCount:      max(d.NotReadMessageCount, 0),
		Category:         d.Category,
		Information:      d.Information,
	}
	if room.Origin != models.OriginPost {
		room.Origin = models.OriginNone
	}

	if d.LastMessageText != "" || d.LastMessageTime != "" {
		last := &models.LastMessage{Text: d.LastMessageText}
		if ts, err := models.ParseTime(d.LastMessageTime); err == nil {
			last.Timestamp = ts
		}
		room.LastMessage = last
	}
	return room
}

// MessageDTO is a stored message as returned by the history endpoint.
type MessageDTO struct {
	MessageID      int64  `json:"messageId"`
	ChatRoomID     int64  `json:"chatRoomId"`
	SenderID       int64  `json:"senderId"`
	SenderVerifyID string `json:"senderVerifyId"`
	SenderName     string `json:"senderName"`
	Content        string `json:"content"`
	Type           string `json:"type"`
	CreatedAt      string `json:"createdAt"`
	IsDeleted      bool   `json:"isDeleted"`
	MediaURL       string `json:"mediaUrl"`
}

// Message converts the DTO, returning an error when createdAt cannot be parsed.
func (d MessageDTO) Message(roomID int64) (models.Message, error) {
	createdAt, err := models.ParseTime(d.CreatedAt)
	if err != nil {
		return models.Message{}, fmt.Errorf("message %d: %w", d.MessageID, err)
	}
	contentType := models.ContentType(strings.ToUpper(d.Type))
	if contentType == "" {
		contentType = models.ContentText
	}
	if d.ChatRoomID != 0 {
		roomID = d.ChatRoomID
	}
	return models.Message{
		ID:             d.MessageID,
		RoomID:         roomID,
		SenderVerifyID: d.SenderVerifyID,
		SenderMemberID: d.SenderID,
		SenderName:     d.SenderName,
		Content:        d.Content,
		ContentType:    contentType,
		MediaURL:       d.MediaURL,
		CreatedAt:      createdAt,
		Deleted:        d.IsDeleted,
	}, nil
}

// BrowseQuery filters the browsable group room listing.
type BrowseQuery struct {
	Category string
	Keyword  string
	Page     int
	Size     int
}

// RoomPage is one page of browsable rooms.
type RoomPage struct {
	Rooms      []models.Room
	Page       int
	TotalPages int
	Last       bool
}

// CompanionRoomRequest creates a room tied to a meetup post.
type CompanionRoomRequest struct {
	Name          string `json:"name"`
	Information   string `json:"information"`
	Category      string `json:"category"`
	EventDate     string `json:"eventDate"`
	CreatedFrom   string `json:"createdFrom,omitempty"`
	CreatedFromID *int64 `json:"createdFromId,omitempty"`
}

// Validate checks the request before it is sent. eventDate must be YYYY-MM-DD and not before today.
func (r CompanionRoomRequest) Validate(now time.Time) error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: room name is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(r.Information) == "" {
		return fmt.Errorf("%w: room information is required", shared.ErrInvalidInput)
	}
	day, err := time.ParseInLocation(time.DateOnly, r.EventDate, now.Location())
	if err != nil {
		return fmt.Errorf("%w: event date %q is not YYYY-MM-DD", shared.ErrInvalidInput, r.EventDate)
	}
	y, m, d := now.Date()
	if day.Before(time.Date(y, m, d, 0, 0, 0, 0, now.Location())) {
		return fmt.Errorf("%w: event date %s is in the past", shared.ErrInvalidInput, r.EventDate)
	}
	return nil
}

func roomsFrom(dtos []RoomDTO) []models.Room {
	rooms := make([]models.Room, 0, len(dtos))
	for _, d := range dtos {
		rooms = append(rooms, d.Room())
	}
	return rooms
}

func roomPath(roomID int64, suffix string) string {
	return "/chatrooms/" + strconv.FormatInt(roomID, 10) + suffix
}

// MyRooms returns every direct and group room the user has joined, in server order.
func (c *Client) MyRooms(ctx context.Context) ([]models.Room, error) {
	var result page[RoomDTO]
	if err := c.doRequest(ctx, http.MethodGet, "/my-chatrooms", nil, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to list my rooms: %w", err)
	}
	return roomsFrom(result.Content), nil
}

// BrowseRooms returns one page of group rooms, filtered server side.
func (c *Client) BrowseRooms(ctx context.Context, q BrowseQuery) (*RoomPage, error) {
	endpoint := "/chatrooms"
	if q.Category != "" {
		endpoint += "/" + url.PathEscape(q.Category)
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(max(q.Page, 0)))
	if q.Size > 0 {
		query.Set("size", strconv.Itoa(q.Size))
	}
	if q.Keyword != "" {
		query.Set("keyword", q.Keyword)
	}

	var result page[RoomDTO]
	if err := c.doRequest(ctx, http.MethodGet, endpoint, query, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to browse rooms: %w", err)
	}
	return &RoomPage{
		Rooms:      roomsFrom(result.Content),
		Page:       result.Number,
		TotalPages: result.TotalPages,
		Last:       result.Last,
	}, nil
}

// MemberInfo lists a room's members. The first entry describes the current user.
func (c *Client) MemberInfo(ctx context.Context, roomID int64) ([]models.Member, error) {
	var members []models.Member
	if err := c.doRequest(ctx, http.MethodGet, roomPath(roomID, "/memberInfo"), nil, nil, &members); err != nil {
		return nil, fmt.Errorf("failed to get member info: %w", err)
	}
	return members, nil
}

// IsOwner reports whether the current user owns the room.
func (c *Client) IsOwner(ctx context.Context, roomID int64) (bool, error) {
	var owner bool
	if err := c.doRequest(ctx, http.MethodGet, roomPath(roomID, "/owner"), nil, nil, &owner); err != nil {
		return false, fmt.Errorf("failed to check ownership: %w", err)
	}
	return owner, nil
}

// Messages fetches one page of a room's history. Entries with unparseable timestamps are skipped.
func (c *Client) Messages(ctx context.Context, roomID int64, pageNum, size int) ([]models.Message, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(max(pageNum, 0)))
	if size > 0 {
		query.Set("size", strconv.Itoa(size))
	}

	var result page[MessageDTO]
	endpoint := "/chat/rooms/" + strconv.FormatInt(roomID, 10) + "/messages"
	if err := c.doRequest(ctx, http.MethodGet, endpoint, query, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	messages := make([]models.Message, 0, len(result.Content))
	for _, d := range result.Content {
		msg, err := d.Message(roomID)
		if err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// JoinRoom adds the current user to a room.
func (c *Client) JoinRoom(ctx context.Context, roomID int64) error {
	if err := c.doRequest(ctx, http.MethodPost, roomPath(roomID, "/join"), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}
	return nil
}

// ExitRoom removes the current user from a room. Any member may call it.
func (c *Client) ExitRoom(ctx context.Context, roomID int64) error {
	if err := c.doRequest(ctx, http.MethodDelete, roomPath(roomID, "/exit"), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}
	return nil
}

// DeleteRoom deletes a room. The server only accepts this from the owner.
func (c *Client) DeleteRoom(ctx context.Context, roomID int64) error {
	if err := c.doRequest(ctx, http.MethodDelete, roomPath(roomID, ""), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}

// RenameRoom changes a room's name.
func (c *Client) RenameRoom(ctx context.Context, roomID int64, name string) error {
	body := map[string]any{"chatRoomId": roomID, "name": name}
	if err := c.doRequest(ctx, http.MethodPatch, "/chatrooms/name", nil, body, nil); err != nil {
		return fmt.Errorf("failed to rename room: %w", err)
	}
	return nil
}

// CreateCompanionRoom creates a POST-origin room. The returned room is nil when the server omits it.
func (c *Client) CreateCompanionRoom(ctx context.Context, req CompanionRoomRequest) (*models.Room, error) {
	var created *RoomDTO
	if err := c.doRequest(ctx, http.MethodPost, "/companion-chatrooms", nil, req, &created); err != nil {
		return nil, fmt.Errorf("failed to create companion room: %w", err)
	}
	if created == nil {
		return nil, nil
	}
	room := created.Room()
	return &room, nil
}

// Post fetches a companion-meetup post.
func (c *Client) Post(ctx context.Context, postID int64) (*models.Post, error) {
	var post models.Post
	if err := c.doRequest(ctx, http.MethodGet, "/posts/"+strconv.FormatInt(postID, 10), nil, nil, &post); err != nil {
		return nil, fmt.Errorf("failed to fetch post %d: %w", postID, err)
	}
	return &post, nil
}

// ExchangeCode trades an authorization code for platform tokens. It is the only unauthenticated call.
func (c *Client) ExchangeCode(ctx context.Context, exchangePath, code string) (*models.Credentials, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is empty")
	}
	query := url.Values{}
	query.Set("code", code)

	var creds models.Credentials
	if err := c.do(ctx, c.plain, http.MethodPost, exchangePath, query, nil, &creds); err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	if creds.AccessToken == "" {
		return nil, fmt.Errorf("token exchange returned no access token")
	}
	return &creds, nil
}
