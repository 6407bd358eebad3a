package reconcile

import (
	"context"
	"slices"
	"strings"

	"github.com/c360/cvsync/cv"
	"github.com/c360/cvsync/cv/diff"
	"github.com/c360/cvsync/ontology"
	"github.com/c360/cvsync/vocabulary"
)

// AnnotationChange rewrites the text of one existing annotation.
type AnnotationChange struct {
	Old cv.Annotation
	New cv.Annotation
}

// AnnotationPlan is the set of annotation writes for one term.
type AnnotationPlan struct {
	Create []cv.Annotation
	Update []AnnotationChange
	Delete []cv.Annotation
}

// Empty reports whether the plan writes nothing.
func (p AnnotationPlan) Empty() bool {
	return len(p.Create) == 0 && len(p.Update) == 0 && len(p.Delete) == 0
}

func (p *AnnotationPlan) merge(o AnnotationPlan) {
	p.Create = append(p.Create, o.Create...)
	p.Update = append(p.Update, o.Update...)
	p.Delete = append(p.Delete, o.Delete...)
}

// AnnotationSync reconciles the free text annotations of a term.
//
// definition and url are singletons updated in place. comment is a pool matched
// by text. obsolete is generated for obsolete terms. used-in-class is derived
// from the ancestor closure. Other topics are diffed as a set, restricted to
// managed topics and topics the ontology itself provides.
type AnnotationSync struct {
	Vocabulary *vocabulary.Registry
}

// special topics handled by dedicated rules rather than by the set diff.
var specialTopics = []string{
	cv.TopicDefinition,
	cv.TopicURL,
	cv.TopicObsolete,
	cv.TopicComment,
	cv.TopicUsedInClass,
}

// Plan computes the annotation writes for a term. usages is the used-in-class
// closure of the term; nil leaves used-in-class untouched.
func (s AnnotationSync) Plan(term *cv.Term, snap *ontology.TermSnapshot, obsolete bool, usages []string) AnnotationPlan {
	var plan AnnotationPlan
	plan.merge(singleton(term.AnnotationsWithTopic(cv.TopicDefinition), cv.TopicDefinition, snap.Definition))
	plan.merge(singleton(term.AnnotationsWithTopic(cv.TopicURL), cv.TopicURL, snap.URL))
	plan.merge(obsoleteAnnotation(term.AnnotationsWithTopic(cv.TopicObsolete), obsolete, snap.ObsoleteMessage))
	plan.merge(commentPool(term.AnnotationsWithTopic(cv.TopicComment), snap.Comments))
	if usages != nil {
		plan.merge(usedInClass(term.AnnotationsWithTopic(cv.TopicUsedInClass), usages))
	}
	plan.merge(s.generic(term, snap))
	return plan
}

// generic diffs the remaining topics with the sorted merge-join.
func (s AnnotationSync) generic(term *cv.Term, snap *ontology.TermSnapshot) AnnotationPlan {
	provided := make(map[string]bool)
	var remote []cv.Annotation
	for _, a := range snap.Annotations {
		if slices.Contains(specialTopics, a.Topic) {
			continue
		}
		provided[a.Topic] = true
		remote = append(remote, a)
	}

	var local []cv.Annotation
	for _, a := range term.Annotations {
		if slices.Contains(specialTopics, a.Topic) {
			continue
		}
		if provided[a.Topic] || (s.Vocabulary != nil && s.Vocabulary.IsManagedTopic(a.Topic)) {
			local = append(local, a)
		}
	}

	res := diff.MergeJoin(local, remote, cv.CompareAnnotations, nil)
	return AnnotationPlan{Create: res.Created, Delete: res.Deleted}
}

// singleton keeps at most one annotation of topic with the given text.
func singleton(local []cv.Annotation, topic, text string) AnnotationPlan {
	var plan AnnotationPlan
	if text == "" {
		plan.Delete = local
		return plan
	}
	want := cv.Annotation{Topic: topic, Text: text}
	if len(local) == 0 {
		plan.Create = []cv.Annotation{want}
		return plan
	}
	keep := slices.Index(local, want)
	if keep < 0 {
		keep = 0
		plan.Update = []AnnotationChange{{Old: local[0], New: want}}
	}
	for i, a := range local {
		if i != keep {
			plan.Delete = append(plan.Delete, a)
		}
	}
	return plan
}

// obsoleteAnnotation adds the obsolete marker when missing and drops it once
// the ontology no longer flags the term. An existing marker text is kept.
func obsoleteAnnotation(local []cv.Annotation, obsolete bool, message string) AnnotationPlan {
	var plan AnnotationPlan
	if !obsolete {
		plan.Delete = local
		return plan
	}
	if len(local) == 0 {
		if message == "" {
			message = cv.DefaultObsoleteText
		}
		plan.Create = []cv.Annotation{{Topic: cv.TopicObsolete, Text: message}}
	}
	return plan
}

// commentPool matches comments by exact text. Unmatched local and ontology
// comments are each sorted and paired in order, the local text being
// overwritten; whatever remains on either side is created or deleted.
func commentPool(local []cv.Annotation, remote []string) AnnotationPlan {
	wanted := make(map[string]int, len(remote))
	for _, c := range remote {
		wanted[c]++
	}

	var freeLocal []cv.Annotation
	for _, a := range local {
		if wanted[a.Text] > 0 {
			wanted[a.Text]--
			continue
		}
		freeLocal = append(freeLocal, a)
	}
	var freeRemote []string
	for _, c := range remote {
		if wanted[c] > 0 {
			wanted[c]--
			freeRemote = append(freeRemote, c)
		}
	}
	slices.SortFunc(freeLocal, cv.CompareAnnotations)
	slices.Sort(freeRemote)

	var plan AnnotationPlan
	n := min(len(freeLocal), len(freeRemote))
	for i := 0; i < n; i++ {
		plan.Update = append(plan.Update, AnnotationChange{
			Old: freeLocal[i],
			New: cv.Annotation{Topic: cv.TopicComment, Text: freeRemote[i]},
		})
	}
	for _, c := range freeRemote[n:] {
		plan.Create = append(plan.Create, cv.Annotation{Topic: cv.TopicComment, Text: c})
	}
	plan.Delete = append(plan.Delete, freeLocal[n:]...)
	return plan
}

// usedInClass writes one annotation listing the union of the existing and the
// computed usages.
func usedInClass(local []cv.Annotation, usages []string) AnnotationPlan {
	all := slices.Clone(usages)
	for _, a := range local {
		all = append(all, splitUsages(a.Text)...)
	}
	slices.Sort(all)
	all = slices.Compact(all)
	if len(all) == 0 {
		return AnnotationPlan{}
	}
	return singleton(local, cv.TopicUsedInClass, strings.Join(all, ", "))
}

func splitUsages(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// UsagesFor unions the used-in-class table entries of a term and all its
// ontology ancestors.
func UsagesFor(ctx context.Context, vocab *vocabulary.Registry, src ontology.Source, snap *ontology.TermSnapshot) ([]string, error) {
	if vocab == nil {
		return nil, nil
	}
	ancestors, err := src.AllParents(ctx, snap)
	if err != nil {
		return nil, err
	}
	usages := vocab.UsagesFor(snap.Accession)
	for _, a := range ancestors {
		usages = append(usages, vocab.UsagesFor(a.Accession)...)
	}
	slices.Sort(usages)
	return slices.Compact(usages), nil
}

func (s AnnotationSync) sync(ctx context.Context, tu *termUpdate) error {
	obsolete := tu.src.IsObsolete(tu.snap)
	usages, err := UsagesFor(ctx, s.Vocabulary, tu.src, tu.snap)
	if err != nil {
		return err
	}

	plan := s.Plan(tu.term, tu.snap, obsolete, usages)
	for _, a := range plan.Delete {
		if err := tu.tx.RemoveAnnotation(ctx, tu.term.ID, a); err != nil {
			return err
		}
	}
	for _, c := range plan.Update {
		if err := tu.tx.UpdateAnnotation(ctx, tu.term.ID, c.Old, c.New); err != nil {
			return err
		}
		tu.change.UpdatedAnnotations = append(tu.change.UpdatedAnnotations, c.New)
	}
	for _, a := range plan.Create {
		if err := tu.tx.AddAnnotation(ctx, tu.term.ID, a); err != nil {
			return err
		}
	}
	tu.change.DeletedAnnotations = append(tu.change.DeletedAnnotations, plan.Delete...)
	tu.change.CreatedAnnotations = append(tu.change.CreatedAnnotations, plan.Create...)

	if obsolete {
		return tu.markHidden(ctx)
	}
	return nil
}
