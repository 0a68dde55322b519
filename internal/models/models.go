package models

import (
	"fmt"
	"strings"
	"time"
)

// RoomKind distinguishes one-to-one rooms from group rooms.
type RoomKind string

const (
	KindDirect RoomKind = "DIRECT"
	KindGroup  RoomKind = "GROUP"
)

// RoomOrigin records whether a room was spawned from a companion post.
type RoomOrigin string

const (
	OriginNone RoomOrigin = ""
	OriginPost RoomOrigin = "POST"
)

// Role is the current user's role within a single room.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleMember Role = "MEMBER"
)

// ContentType is the payload kind of a chat message.
type ContentType string

const (
	ContentText  ContentType = "TEXT"
	ContentImage ContentType = "IMAGE"
	ContentFile  ContentType = "FILE"
)

// LastMessage is the preview shown for a room in list views.
type LastMessage struct {
	Text      string
	Timestamp time.Time
}

// Room is a chat conversation the user can see.
//
// UnreadCount is server authoritative. The client never decrements it; it
// only suppresses how it is displayed.
type Room struct {
	ID               int64
	Name             string
	Kind             RoomKind
	Origin           RoomOrigin
	OriginPostID     *int64
	ParticipantCount int
	UnreadCount      int
	LastMessage      *LastMessage
	Role             Role
	Category         string
	Information      string
}

// IsCompanion reports whether the room was created alongside a meetup post.
func (r Room) IsCompanion() bool { return r.Origin == OriginPost }

// LastActivity returns the last message timestamp, or the zero time when the room has no messages.
func (r Room) LastActivity() time.Time {
	if r.LastMessage == nil {
		return time.Time{}
	}
	return r.LastMessage.Timestamp
}

// DisplayName returns the room name, falling back to a generic label for unnamed rooms.
func (r Room) DisplayName() string {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Sprintf("Room %d", r.ID)
	}
	return r.Name
}

// Member describes one participant of a room.
type Member struct {
	MemberID int64  `json:"memberId"`
	VerifyID string `json:"verifyId"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

// Post is the subset of a companion-meetup post used for room enrichment.
type Post struct {
	ID               int64  `json:"postId"`
	Title            string `json:"title"`
	Content          string `json:"content"`
	Writer           string `json:"writer"`
	EventTitle       string `json:"eventTitle"`
	EventMainImage   string `json:"eventMainImage"`
	EventStartDate   string `json:"eventStartDate"`
	EventEndDate     string `json:"eventEndDate"`
	RecruitmentTotal int    `json:"recruitmentTotal"`
}

// Identity holds the current user's stable identifiers.
type Identity struct {
	VerifyID string
	MemberID int64
}

// IsZero reports whether no identifier is known.
func (i Identity) IsZero() bool { return i.VerifyID == "" && i.MemberID == 0 }

// Owns reports whether a message sent by (verifyID, memberID) was sent by this identity.
// The verify id wins when both sides carry one.
func (i Identity) Owns(verifyID string, memberID int64) bool {
	if i.VerifyID != "" && verifyID != "" {
		return i.VerifyID == verifyID
	}
	return i.MemberID != 0 && i.MemberID == memberID
}

// Credentials is what the token exchange endpoint hands back after login.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Role         string `json:"role"`
	VerifyID     string `json:"verifyId"`
}
