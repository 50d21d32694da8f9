package model

import (
	"encoding/json"
	"time"
)

// ResourceKind はCRUDリソースの種別（= URLプレフィックス）を表す。
type ResourceKind string

const (
	KindStudents    ResourceKind = "students"
	KindCourses     ResourceKind = "courses"
	KindGrades      ResourceKind = "grades"
	KindAttendance  ResourceKind = "attendance"
	KindTimetable   ResourceKind = "timetable"
	KindAssignments ResourceKind = "assignments"
	KindSubmissions ResourceKind = "submissions"
	KindFees        ResourceKind = "fees"
)

// ResourceKinds は/api/v1配下にマウントするリソース種別の一覧。
var ResourceKinds = []ResourceKind{
	KindStudents,
	KindCourses,
	KindGrades,
	KindAttendance,
	KindTimetable,
	KindAssignments,
	KindSubmissions,
	KindFees,
}

// Resource は学生・コース・成績などの汎用ドキュメント。
// 各リソースは構造を持たないJSONオブジェクトとして保存する。
type Resource struct {
	ID        string
	Kind      ResourceKind
	OwnerID   string
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}
