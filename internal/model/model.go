package model

// Role はプロフィールの役割を表す。
type Role string

const (
	// RoleMentor はメンターを表す。
	RoleMentor Role = "mentor"
	// RoleMentee はメンティーを表す。
	RoleMentee Role = "mentee"
)

// ConnectionStatus はメンター・メンティー間の接続状態を表す。
type ConnectionStatus string

// ConnectionStatusPending は接続リクエスト直後の状態。
const ConnectionStatusPending ConnectionStatus = "pending"

// Profile はメンターまたはメンティーのプロフィール。
// IDは認証アイデンティティのIDと一致する前提で扱う。
type Profile struct {
	// ID は認証アイデンティティと同じ一意識別子。
	ID string `json:"id"`
	// Name は表示名。
	Name string `json:"name"`
	// Role は mentor または mentee。
	Role Role `json:"role"`
	// Expertise は専門分野。
	Expertise string `json:"expertise"`
	// Bio は自己紹介。
	Bio string `json:"bio"`
	// CreatedAt は作成日時。
	CreatedAt Timestamp `json:"created_at"`

	// raw はマネージドバックエンドが返した行そのもの。
	raw record
}

// NewProfile はプロフィール作成時の入力。
type NewProfile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	Expertise string `json:"expertise"`
	Bio       string `json:"bio"`
}

// Connection はメンターとメンティーの接続。
type Connection struct {
	// ID は接続の一意識別子。
	ID string `json:"id"`
	// MentorID はメンターのプロフィールID。
	MentorID string `json:"mentor_id"`
	// MenteeID はメンティーのプロフィールID。
	MenteeID string `json:"mentee_id"`
	// Status は接続状態。
	Status ConnectionStatus `json:"status"`
	// CreatedAt は作成日時。
	CreatedAt Timestamp `json:"created_at"`

	raw record
}

// NewConnection は接続作成時の入力。
type NewConnection struct {
	MentorID string           `json:"mentor_id"`
	MenteeID string           `json:"mentee_id"`
	Status   ConnectionStatus `json:"status"`
}

// Message はユーザー間のメッセージ。
type Message struct {
	// ID はメッセージの一意識別子。
	ID string `json:"id"`
	// SenderID は送信者のプロフィールID。
	SenderID string `json:"sender_id"`
	// ReceiverID は受信者のプロフィールID。
	ReceiverID string `json:"receiver_id"`
	// Content は本文。
	Content string `json:"content"`
	// CreatedAt は送信日時。一覧の並び順に使う。
	CreatedAt Timestamp `json:"created_at"`

	raw record
}

// NewMessage はメッセージ送信時の入力。
type NewMessage struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

// Identity はマネージドバックエンドの認証アイデンティティ。
type Identity struct {
	// ID はアイデンティティの一意識別子。
	ID string `json:"id"`
	// Email はログインに使うメールアドレス。
	Email string `json:"email"`
}

// AuthSession はサインイン時にマネージドバックエンドが発行するトークンの組。
type AuthSession struct {
	// AccessToken はベアラートークン。
	AccessToken string `json:"access_token"`
	// RefreshToken はアクセストークン再発行用のトークン。
	RefreshToken string `json:"refresh_token"`
	// ExpiresIn はアクセストークンの有効秒数。
	ExpiresIn int `json:"expires_in"`
}
