package model

import "time"

// User represents a coaching client as stored in the `users` table.
// Workbooks mirrors the user_workbooks join table: it is the user's own
// index of the instances assigned to them and must always equal the set of
// instances whose assigned_to column names this user.
//
// Fields:
//  ID               – users.id (24 hex chars).
//  Name             – users.name.
//  Email            – users.email.
//  Workbooks        – user_workbooks.instance_id for this user.
//  IsCompleted      – users.is_completed; set by a bulk submission.
//  CompletedAt      – users.completed_at (nullable).
//  DashboardExpired – users.dashboard_expired.
//  LinkExpiresAt    – users.link_expires_at (nullable); end of the access window.
//  CreatedAt        – timestamp of creation.
//  UpdatedAt        – timestamp of last update.
type User struct {
    ID               string     `json:"id"`
    Name             string     `json:"name"`
    Email            string     `json:"email"`
    Workbooks        []string   `json:"workbooks"`
    IsCompleted      bool       `json:"isCompleted"`
    CompletedAt      *time.Time `json:"completedAt"`
    DashboardExpired bool       `json:"dashboardExpired"`
    LinkExpiresAt    *time.Time `json:"linkExpiresAt"`
    CreatedAt        time.Time  `json:"createdAt"`
    UpdatedAt        time.Time  `json:"updatedAt"`
}
