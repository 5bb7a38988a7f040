// Package model defines the database models used throughout the application.
// These models work with both PostgreSQL and SQLite via GORM.
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a marketplace user.
type User struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null;type:text" json:"email"`
	Name      string    `gorm:"not null;type:text" json:"name"`
	IsAdmin   bool      `gorm:"column:is_admin;default:false" json:"isAdmin"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	Agents   []Agent   `gorm:"foreignKey:CreatorID" json:"-"`
	Sessions []Session `gorm:"foreignKey:UserID" json:"-"`
	Jobs     []Job     `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// AccessToken resolves an API bearer token to a user.
// Tokens are stored hashed; the raw token never touches the database.
type AccessToken struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	UserID    string    `gorm:"column:user_id;not null;type:text;index" json:"userId"`
	TokenHash string    `gorm:"column:token_hash;uniqueIndex;not null;type:text" json:"-"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index" json:"expiresAt"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (AccessToken) TableName() string { return "access_tokens" }

func (t *AccessToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// Agent represents a published marketplace agent.
type Agent struct {
	ID          string    `gorm:"primaryKey;type:text" json:"id"`
	Name        string    `gorm:"not null;type:text" json:"name"`
	Description string    `gorm:"not null;type:text" json:"description"`
	Version     string    `gorm:"not null;type:text;default:0.0.1" json:"version"`
	IsVerified  bool      `gorm:"column:is_verified;default:false" json:"isVerified"`
	CreatorID   string    `gorm:"column:creator_id;not null;type:text;index" json:"creatorId"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	Creator *User          `gorm:"foreignKey:CreatorID" json:"-"`
	Files   []AgentFile    `gorm:"foreignKey:AgentID" json:"-"`
	EnvVars []AgentEnvVar  `gorm:"foreignKey:AgentID" json:"-"`
	Tags    []Tag          `gorm:"many2many:agent_tags" json:"-"`
	Stars   []StarredAgent `gorm:"foreignKey:AgentID" json:"-"`
}

func (Agent) TableName() string { return "agents" }

func (a *Agent) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// AgentFile is metadata for a file bundled with an agent.
// The file content itself lives on the execution server.
type AgentFile struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	AgentID   string    `gorm:"column:agent_id;not null;type:text;index" json:"agentId"`
	Filename  string    `gorm:"not null;type:text" json:"filename"`
	Filepath  string    `gorm:"not null;type:text" json:"filepath"`
	Filesize  int64     `gorm:"not null" json:"filesize"`
	Mimetype  string    `gorm:"not null;type:text" json:"mimetype"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`

	Agent *Agent `gorm:"foreignKey:AgentID" json:"-"`
}

func (AgentFile) TableName() string { return "agent_files" }

func (f *AgentFile) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}

// AgentEnvVar is a key-value environment variable attached to an agent.
type AgentEnvVar struct {
	ID      string `gorm:"primaryKey;type:text" json:"id"`
	AgentID string `gorm:"column:agent_id;not null;type:text;uniqueIndex:idx_agent_env_key" json:"agentId"`
	Key     string `gorm:"not null;type:text;uniqueIndex:idx_agent_env_key" json:"key"`
	Value   string `gorm:"not null;type:text" json:"value"`

	Agent *Agent `gorm:"foreignKey:AgentID" json:"-"`
}

func (AgentEnvVar) TableName() string { return "agent_env_vars" }

func (v *AgentEnvVar) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}

// Tag is a label attachable to many agents.
type Tag struct {
	ID   string `gorm:"primaryKey;type:text" json:"id"`
	Name string `gorm:"uniqueIndex;not null;type:text" json:"name"`
}

func (Tag) TableName() string { return "tags" }

func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// StarredAgent is the star join row between a user and an agent.
// Row presence means "starred".
type StarredAgent struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	AgentID   string    `gorm:"column:agent_id;not null;type:text;uniqueIndex:idx_agent_user_star" json:"agentId"`
	UserID    string    `gorm:"column:user_id;not null;type:text;uniqueIndex:idx_agent_user_star;index" json:"userId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`

	Agent *Agent `gorm:"foreignKey:AgentID" json:"-"`
	User  *User  `gorm:"foreignKey:UserID" json:"-"`
}

func (StarredAgent) TableName() string { return "starred_agents" }

func (s *StarredAgent) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// Session binds one user to one agent and accumulates chat history and variables.
// A nil EndedAt means the session is active; once set, the session stops
// accepting new messages and variables.
type Session struct {
	ID        string     `gorm:"primaryKey;type:text" json:"id"`
	UserID    string     `gorm:"column:user_id;not null;type:text;index" json:"userId"`
	AgentID   string     `gorm:"column:agent_id;not null;type:text;index" json:"agentId"`
	StartedAt time.Time  `gorm:"column:started_at;autoCreateTime" json:"startedAt"`
	EndedAt   *time.Time `gorm:"column:ended_at" json:"endedAt"`

	User        *User          `gorm:"foreignKey:UserID" json:"-"`
	Agent       *Agent         `gorm:"foreignKey:AgentID" json:"-"`
	ChatHistory []ChatMessage  `gorm:"foreignKey:SessionID" json:"-"`
	UserVars    []UserVariable `gorm:"foreignKey:SessionID" json:"-"`
}

func (Session) TableName() string { return "sessions" }

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// Ended reports whether the session has an end timestamp.
func (s *Session) Ended() bool { return s.EndedAt != nil }

// Chat message roles.
const (
	RoleUser   = "user"
	RoleAgent  = "agent"
	RoleSystem = "system"
)

// ValidRole reports whether role is one of the accepted chat roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAgent || role == RoleSystem
}

// ChatMessage is one entry in a session's append-only chat history.
type ChatMessage struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	SessionID string    `gorm:"column:session_id;not null;type:text;index" json:"sessionId"`
	Role      string    `gorm:"not null;type:text" json:"role"`
	Content   string    `gorm:"not null;type:text" json:"content"`
	Timestamp time.Time `gorm:"autoCreateTime;index" json:"timestamp"`

	Session *Session `gorm:"foreignKey:SessionID" json:"-"`
}

func (ChatMessage) TableName() string { return "chat_messages" }

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// UserVariable is a uniquely-keyed value scoped to a session.
type UserVariable struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	SessionID string    `gorm:"column:session_id;not null;type:text;uniqueIndex:idx_session_var_key" json:"sessionId"`
	Key       string    `gorm:"not null;type:text;uniqueIndex:idx_session_var_key" json:"key"`
	Value     string    `gorm:"not null;type:text" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	Session *Session `gorm:"foreignKey:SessionID" json:"-"`
}

func (UserVariable) TableName() string { return "user_variables" }

func (v *UserVariable) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}

// AllModels returns all model types for migration.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&AccessToken{},
		&Agent{},
		&AgentFile{},
		&AgentEnvVar{},
		&Tag{},
		&StarredAgent{},
		&Session{},
		&ChatMessage{},
		&UserVariable{},
		&Job{},
		&JobLog{},
	}
}
