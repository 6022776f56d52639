package service

import (
	"context"

	directorydomain "github.com/aulatech/cobranza/internal/directory/domain"
	"github.com/aulatech/cobranza/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	cycles   repository.Repository[directorydomain.SchoolCycle]
	groups   repository.Repository[directorydomain.Group]
	students repository.Repository[directorydomain.Student]
	concepts repository.Repository[directorydomain.ChargeConcept]
}

func NewService(p Params) directorydomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("directory.service"),

		cycles:   repository.ProvideStore[directorydomain.SchoolCycle](p.DB),
		groups:   repository.ProvideStore[directorydomain.Group](p.DB),
		students: repository.ProvideStore[directorydomain.Student](p.DB),
		concepts: repository.ProvideStore[directorydomain.ChargeConcept](p.DB),
	}
}

func (s *Service) GetCycle(ctx context.Context, id snowflake.ID) (directorydomain.SchoolCycle, error) {
	item, err := s.cycles.FindOne(ctx, &directorydomain.SchoolCycle{ID: id})
	if err != nil {
		return directorydomain.SchoolCycle{}, err
	}
	if item == nil {
		return directorydomain.SchoolCycle{}, directorydomain.ErrCycleNotFound
	}
	return *item, nil
}

func (s *Service) GetGroup(ctx context.Context, id snowflake.ID) (directorydomain.Group, error) {
	item, err := s.groups.FindOne(ctx, &directorydomain.Group{ID: id})
	if err != nil {
		return directorydomain.Group{}, err
	}
	if item == nil {
		return directorydomain.Group{}, directorydomain.ErrGroupNotFound
	}
	return *item, nil
}

func (s *Service) GetStudent(ctx context.Context, id snowflake.ID) (directorydomain.Student, error) {
	item, err := s.students.FindOne(ctx, &directorydomain.Student{ID: id})
	if err != nil {
		return directorydomain.Student{}, err
	}
	if item == nil {
		return directorydomain.Student{}, directorydomain.ErrStudentNotFound
	}
	return *item, nil
}

func (s *Service) GetConceptByCode(ctx context.Context, code string) (directorydomain.ChargeConcept, error) {
	item, err := s.concepts.FindOne(ctx, &directorydomain.ChargeConcept{Code: code})
	if err != nil {
		return directorydomain.ChargeConcept{}, err
	}
	if item == nil {
		return directorydomain.ChargeConcept{}, directorydomain.ErrConceptNotFound
	}
	return *item, nil
}

func (s *Service) ListActiveStudentsByGroup(ctx context.Context, groupID snowflake.ID) ([]directorydomain.Student, error) {
	items, err := s.students.Find(ctx, &directorydomain.Student{GroupID: &groupID, Active: true})
	if err != nil {
		return nil, err
	}
	students := make([]directorydomain.Student, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		students = append(students, *item)
	}
	return students, nil
}

func (s *Service) ListActiveStudents(ctx context.Context) ([]directorydomain.Student, error) {
	items, err := s.students.Find(ctx, &directorydomain.Student{Active: true})
	if err != nil {
		return nil, err
	}
	students := make([]directorydomain.Student, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		students = append(students, *item)
	}
	return students, nil
}
