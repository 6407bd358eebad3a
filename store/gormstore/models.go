package gormstore

import (
	"time"

	"github.com/c360/cvsync/cv"
)

type termModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Kind        string `gorm:"size:64"`
	Identifier  string `gorm:"size:64;index"`
	ShortLabel  string `gorm:"size:256;not null;index"`
	FullName    string
	Hidden      bool
	Xrefs       []xrefModel       `gorm:"foreignKey:TermID;constraint:OnDelete:CASCADE"`
	Aliases     []aliasModel      `gorm:"foreignKey:TermID;constraint:OnDelete:CASCADE"`
	Annotations []annotationModel `gorm:"foreignKey:TermID;constraint:OnDelete:CASCADE"`
	ParentEdges []edgeModel       `gorm:"foreignKey:ChildID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (termModel) TableName() string { return "cv_terms" }

type xrefModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	TermID      int64  `gorm:"not null;index"`
	Database    string `gorm:"column:db_name;size:64;index:idx_xref_identity,priority:1"`
	Qualifier   string `gorm:"size:64;index:idx_xref_identity,priority:2"`
	PrimaryID   string `gorm:"size:128;index:idx_xref_identity,priority:3"`
	SecondaryID string `gorm:"size:128"`
}

func (xrefModel) TableName() string { return "cv_term_xrefs" }

type aliasModel struct {
	ID     int64  `gorm:"primaryKey;autoIncrement"`
	TermID int64  `gorm:"not null;index"`
	Type   string `gorm:"column:alias_type;size:64"`
	Name   string `gorm:"size:512"`
}

func (aliasModel) TableName() string { return "cv_term_aliases" }

type annotationModel struct {
	ID     int64  `gorm:"primaryKey;autoIncrement"`
	TermID int64  `gorm:"not null;index"`
	Topic  string `gorm:"size:64;index"`
	Text   string `gorm:"column:annotation_text"`
}

func (annotationModel) TableName() string { return "cv_term_annotations" }

// edgeModel is one parent link. The pair is the primary key, so an edge exists at most once.
type edgeModel struct {
	ChildID  int64 `gorm:"primaryKey;autoIncrement:false"`
	ParentID int64 `gorm:"primaryKey;autoIncrement:false;index"`
}

func (edgeModel) TableName() string { return "cv_term_parents" }

// referenceModel is a foreign row pointing at a term.
type referenceModel struct {
	ID     int64  `gorm:"primaryKey;autoIncrement"`
	Kind   string `gorm:"size:96;not null;index:idx_ref_kind_term,priority:1"`
	Owner  string `gorm:"size:128"`
	TermID int64  `gorm:"not null;index:idx_ref_kind_term,priority:2;index"`
}

func (referenceModel) TableName() string { return "cv_references" }

func allModels() []any {
	return []any{
		&termModel{},
		&xrefModel{},
		&aliasModel{},
		&annotationModel{},
		&edgeModel{},
		&referenceModel{},
	}
}

func fromTerm(t *cv.Term) *termModel {
	m := &termModel{
		ID:         int64(t.ID),
		Kind:       t.Kind,
		Identifier: t.Identifier,
		ShortLabel: t.ShortLabel,
		FullName:   t.FullName,
		Hidden:     t.Hidden,
	}
	for _, x := range t.Xrefs {
		m.Xrefs = append(m.Xrefs, xrefModel{
			Database:    x.Database,
			Qualifier:   x.Qualifier,
			PrimaryID:   x.PrimaryID,
			SecondaryID: x.SecondaryID,
		})
	}
	for _, a := range t.Aliases {
		m.Aliases = append(m.Aliases, aliasModel{Type: a.Type, Name: a.Name})
	}
	for _, a := range t.Annotations {
		m.Annotations = append(m.Annotations, annotationModel{Topic: a.Topic, Text: a.Text})
	}
	return m
}

func (m *termModel) toTerm() *cv.Term {
	t := &cv.Term{
		ID:         cv.TermID(m.ID),
		Kind:       m.Kind,
		Identifier: m.Identifier,
		ShortLabel: m.ShortLabel,
		FullName:   m.FullName,
		Hidden:     m.Hidden,
	}
	for _, x := range m.Xrefs {
		t.Xrefs = append(t.Xrefs, cv.Xref{
			Database:    x.Database,
			Qualifier:   x.Qualifier,
			PrimaryID:   x.PrimaryID,
			SecondaryID: x.SecondaryID,
		})
	}
	for _, a := range m.Aliases {
		t.Aliases = append(t.Aliases, cv.Alias{Type: a.Type, Name: a.Name})
	}
	for _, a := range m.Annotations {
		t.Annotations = append(t.Annotations, cv.Annotation{Topic: a.Topic, Text: a.Text})
	}
	for _, e := range m.ParentEdges {
		t.Parents = append(t.Parents, cv.TermID(e.ParentID))
	}
	return t
}

func xrefMatch(id cv.TermID, x cv.Xref) map[string]any {
	return map[string]any{
		"term_id":      int64(id),
		"db_name":      x.Database,
		"qualifier":    x.Qualifier,
		"primary_id":   x.PrimaryID,
		"secondary_id": x.SecondaryID,
	}
}

func aliasMatch(id cv.TermID, a cv.Alias) map[string]any {
	return map[string]any{"term_id": int64(id), "alias_type": a.Type, "name": a.Name}
}

func annotationMatch(id cv.TermID, a cv.Annotation) map[string]any {
	return map[string]any{"term_id": int64(id), "topic": a.Topic, "annotation_text": a.Text}
}
