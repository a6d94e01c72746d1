package models

import "time"

// Membership role keys reserved by the system. Tenant roles defined via
// TenantRole use their own keys and must not collide with these.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// User is a global account; tenant association goes through Membership.
// Account is a short login handle alongside the email; both work as the
// login identifier, so Account is always populated.
type User struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	Email         string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Account       string    `gorm:"size:64;uniqueIndex;not null" json:"account"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	Mobile        string    `gorm:"size:32" json:"mobile,omitempty"`
	PasswordHash  string    `gorm:"size:255;not null" json:"-"`
	MustChangePwd bool      `gorm:"not null;default:false" json:"must_change_pwd"`
	DefaultTenant string    `gorm:"size:64" json:"default_tenant_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Membership binds a user to a tenant with either a reserved role key
// or the key of a TenantRole.
type Membership struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	TenantID  string    `gorm:"size:64;index:idx_tenant_user,unique;not null" json:"tenant_id"`
	UserID    string    `gorm:"size:64;index:idx_tenant_user,unique;not null" json:"user_id"`
	RoleKey   string    `gorm:"size:64;not null;default:member" json:"role_key"`
	CreatedAt time.Time `json:"created_at"`
}

// TenantRole is a named role inside a tenant. The Can* flags are the
// defaults applied when the role is granted to a member.
type TenantRole struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	TenantID     string    `gorm:"size:64;index:idx_tenant_role_key,unique;not null" json:"tenant_id"`
	Key          string    `gorm:"size:64;index:idx_tenant_role_key,unique;not null" json:"key"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Builtin      bool      `gorm:"not null;default:false" json:"builtin"`
	CanManage    bool      `gorm:"not null;default:false" json:"can_manage"`
	CanInvite    bool      `gorm:"not null;default:false" json:"can_invite"`
	CanReadData  bool      `gorm:"not null;default:true" json:"can_read_data"`
	CanWriteData bool      `gorm:"not null;default:false" json:"can_write_data"`
	CreatedAt    time.Time `json:"created_at"`
}

func (User) TableName() string       { return "users" }
func (Membership) TableName() string { return "memberships" }
func (TenantRole) TableName() string { return "tenant_roles" }
