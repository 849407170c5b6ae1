package model

import (
	"path/filepath"
	"strings"
	"time"
)

// DisputeStatus 争议状态
type DisputeStatus string

const (
	DisputeStatusOpen      DisputeStatus = "Open"
	DisputeStatusClosed    DisputeStatus = "Closed"
	DisputeStatusWithdrawn DisputeStatus = "Withdrawn"
)

// DocumentType 争议附件类型
type DocumentType string

const (
	DocumentTypePDF   DocumentType = "pdf"
	DocumentTypeImage DocumentType = "image"
	DocumentTypeDoc   DocumentType = "doc"
)

// UploaderRole 上传者身份
type UploaderRole string

const (
	UploaderAssociate UploaderRole = "associate"
	UploaderClient    UploaderRole = "client"
)

// DisputeMessage 争议消息，按追加顺序保存
type DisputeMessage struct {
	SenderID  int64     `json:"senderId" bson:"sender_id"`
	Message   string    `json:"message" bson:"message"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// DisputeDocument 争议附件
type DisputeDocument struct {
	URL            string       `json:"url" bson:"url"`
	Filename       string       `json:"filename" bson:"filename"`
	Description    string       `json:"description,omitempty" bson:"description,omitempty"`
	Type           DocumentType `json:"type" bson:"type"`
	Size           int64        `json:"size" bson:"size"`
	UploadedBy     int64        `json:"uploadedBy" bson:"uploaded_by"`
	UploadedByRole UploaderRole `json:"uploadedByRole" bson:"uploaded_by_role"`
	UploadedAt     time.Time    `json:"uploadedAt" bson:"uploaded_at"`
}

// Dispute 争议
type Dispute struct {
	ID             int64             `json:"id" bson:"id"`
	OwnerID        int64             `json:"ownerId" bson:"owner_id"`
	ProjectID      int64             `json:"projectId" bson:"project_id"`
	UserID         int64             `json:"userId" bson:"user_id"`
	AssociateID    int64             `json:"associateId,omitempty" bson:"associate_id,omitempty"`
	ContractID     int64             `json:"contractId,omitempty" bson:"contract_id,omitempty"`
	Title          string            `json:"title,omitempty" bson:"title,omitempty"`
	InitialMessage string            `json:"initialMessage" bson:"initial_message"`
	Status         DisputeStatus     `json:"status" bson:"status"`
	Messages       []DisputeMessage  `json:"messages" bson:"messages"`
	Documents      []DisputeDocument `json:"documents" bson:"documents"`
	ClosedAt       *time.Time        `json:"closedAt,omitempty" bson:"closed_at,omitempty"`
	CreatedAt      time.Time         `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time         `json:"updatedAt" bson:"updated_at"`
}

// DocumentTypeOf 根据文件扩展名推断附件类型
func DocumentTypeOf(filename string) DocumentType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return DocumentTypePDF
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp":
		return DocumentTypeImage
	default:
		return DocumentTypeDoc
	}
}
