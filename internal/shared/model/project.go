package model

import "time"

// ProjectStatus 项目状态
type ProjectStatus string

const (
	ProjectStatusInProgress ProjectStatus = "In-Progress"
	ProjectStatusCompleted  ProjectStatus = "Completed"
)

// 新项目默认预算
const (
	DefaultProjectBudget   = 10000
	DefaultProjectCurrency = "USD"
)

// MessageTypeText 默认消息类型
const MessageTypeText = "text"

type ProjectClient struct {
	Name    string    `json:"name" bson:"name"`
	Email   string    `json:"email" bson:"email"`
	AddedAt time.Time `json:"addedAt" bson:"added_at"`
}

type ProjectDocument struct {
	Name       string    `json:"name" bson:"name"`
	URL        string    `json:"url" bson:"url"`
	Size       int64     `json:"size" bson:"size"`
	UploadedBy int64     `json:"uploadedBy" bson:"uploaded_by"`
	UploadedAt time.Time `json:"uploadedAt" bson:"uploaded_at"`
}

type ProjectActivity struct {
	Description string    `json:"description" bson:"description"`
	CreatedBy   int64     `json:"createdBy" bson:"created_by"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
}

type ProjectMessage struct {
	SenderID    int64     `json:"senderId" bson:"sender_id"`
	Message     string    `json:"message" bson:"message"`
	MessageType string    `json:"messageType" bson:"message_type"`
	SentAt      time.Time `json:"sentAt" bson:"sent_at"`
}

// Project 项目
type Project struct {
	ID          int64             `json:"id" bson:"id"`
	OwnerID     int64             `json:"ownerId" bson:"owner_id"`
	Title       string            `json:"title" bson:"title"`
	Description string            `json:"description,omitempty" bson:"description,omitempty"`
	Date        time.Time         `json:"date" bson:"date"`
	Status      ProjectStatus     `json:"status" bson:"status"`
	Budget      int64             `json:"budget" bson:"budget"`
	Currency    string            `json:"currency" bson:"currency"`
	Clients     []ProjectClient   `json:"clients" bson:"clients"`
	Documents   []ProjectDocument `json:"documents" bson:"documents"`
	Activities  []ProjectActivity `json:"activities" bson:"activities"`
	Messages    []ProjectMessage  `json:"messages,omitempty" bson:"messages"`
	CreatedAt   time.Time         `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time         `json:"updatedAt" bson:"updated_at"`
}

// HasClient 是否已存在同邮箱客户
func (p *Project) HasClient(email string) bool {
	for _, c := range p.Clients {
		if c.Email == email {
			return true
		}
	}
	return false
}
