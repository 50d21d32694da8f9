// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限区分を表す。
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// User は学生管理システムの利用ユーザーを表す。
// ローカル登録またはGoogleログイン時の自動作成のどちらかで作られる。
type User struct {
	ID           string
	FullName     string
	Email        string
	Username     string
	PasswordHash string
	IsVerified   bool
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FederatedProfile は外部IdPから取得したプロフィール。
// 永続化はせず、Userの検索・作成にのみ使用する。
type FederatedProfile struct {
	Provider       string // "google"
	ProviderUserID string
	Name           string
	Email          string
}

// Session はユーザーのログインセッションを表す。
// 保持するのはユーザーIDのみで、ユーザー情報はリクエストごとに再取得する。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// TokenPair はアクセストークンとリフレッシュトークンの組。
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
