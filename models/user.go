package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleCitizen Role = "CITIZEN"
	RoleStaff   Role = "STAFF"
	RoleAdmin   Role = "ADMIN"
)

// RoleAll selects every user in an admin broadcast. No user carries it.
const RoleAll Role = "ALL"

func (r Role) Valid() bool {
	return r == RoleCitizen || r == RoleStaff || r == RoleAdmin
}

// Transaction is one append-only wallet entry. Coins is positive when earned.
type Transaction struct {
	Description string    `bson:"description" json:"description"`
	Coins       int64     `bson:"coins" json:"coins"`
	Date        time.Time `bson:"date" json:"date"`
}

type Wallet struct {
	Balance      int64         `bson:"balance" json:"balance"`
	Transactions []Transaction `bson:"transactions" json:"transactions"`
}

type User struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name       string              `bson:"name" json:"name"`
	Email      string              `bson:"email" json:"email"`
	Password   string              `bson:"password,omitempty" json:"-"`
	Role       Role                `bson:"role" json:"role"`
	Department *primitive.ObjectID `bson:"department" json:"department"`
	Wallet     Wallet              `bson:"wallet" json:"wallet"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// BeforePersist prepares a new user record for storage: the plain password is
// replaced by its bcrypt hash and defaults are filled in. Repositories call it
// explicitly on insert.
func (u *User) BeforePersist() error {
	if u.Role == "" {
		u.Role = RoleCitizen
	}
	if u.Wallet.Transactions == nil {
		u.Wallet.Transactions = []Transaction{}
	}
	if u.Password == "" || isBcryptHash(u.Password) {
		return nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

func (u *User) ComparePassword(candidate string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(candidate))
	return err == nil
}

// InDepartment reports whether the user is staffed on the given department.
func (u *User) InDepartment(deptID primitive.ObjectID) bool {
	return u.Department != nil && *u.Department == deptID
}

func (u *User) Clone() *User {
	out := *u
	out.Wallet.Transactions = append([]Transaction(nil), u.Wallet.Transactions...)
	if u.Department != nil {
		v := *u.Department
		out.Department = &v
	}
	return &out
}

func isBcryptHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}
