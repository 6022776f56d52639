package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Service is the read-only directory the billing engine consults. The
// directory itself is maintained elsewhere; billing only looks things up.
type Service interface {
	GetCycle(ctx context.Context, id snowflake.ID) (SchoolCycle, error)
	GetGroup(ctx context.Context, id snowflake.ID) (Group, error)
	GetStudent(ctx context.Context, id snowflake.ID) (Student, error)
	GetConceptByCode(ctx context.Context, code string) (ChargeConcept, error)
	ListActiveStudentsByGroup(ctx context.Context, groupID snowflake.ID) ([]Student, error)
	ListActiveStudents(ctx context.Context) ([]Student, error)
}
