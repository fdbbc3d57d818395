package entity

import (
	"fmt"
	"sort"
	"time"
)

const (
	DefaultPageSize    = 5
	ProfessorsPageSize = 9

	CategoryPresentiel = "Présentiel"
	CategoryDistance   = "Distance"
)

// Today returns the default date of new payments.
var Today = func() string { return time.Now().Format("2006-01-02") }

var registry = map[string]func() *Schema{
	"students":   Students,
	"presentiel": func() *Schema { return StudentsIn("presentiel", CategoryPresentiel) },
	"distance":   func() *Schema { return StudentsIn("distance", CategoryDistance) },
	"professors": Professors,
	"subjects":   Subjects,
	"mentions":   Mentions,
	"levels":     Levels,
	"courses":    Courses,
	"categories": Categories,
	"fees":       Fees,
	"payments":   Payments,
	"users":      Users,
}

// Lookup returns a fresh schema for the named entity.
func Lookup(name string) (*Schema, bool) {
	fn, ok := registry[name]
	if !ok {
		return nil, false
	}
	return fn(), true
}

// Names lists the known entities.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Students() *Schema {
	return &Schema{
		Name:     "students",
		Resource: "etudiants",
		Title:    "Gestion des étudiants",
		Fields: []Field{
			{Name: "matricule", Label: "Matricule", Rules: "required"},
			{Name: "etudiant_email", Label: "Email", Kind: KindEmail, Rules: "email"},
			{Name: "nom", Label: "Nom", Rules: "required"},
			{Name: "prenom", Label: "Prénom"},
			{Name: "mention", Label: "Mention", Kind: KindRef},
			{Name: "parcours", Label: "Parcours", Kind: KindRef},
			{Name: "niveau", Label: "Niveau", Kind: KindRef},
			{Name: "category", Label: "Catégorie", Kind: KindRef},
			{Name: "date_de_naissance", Label: "Date de naissance", Kind: KindDate, Rules: "datetime=2006-01-02"},
			{Name: "adresse", Label: "Adresse"},
			{Name: "tel", Label: "Téléphone"},
			{Name: "moyenne", Label: "Moyenne", Kind: KindNumber, Rules: "numeric"},
			{Name: "responsabilite", Label: "Responsabilité"},
		},
		Columns: []Column{
			{"matricule", "Matricule"},
			{"nom", "Nom"},
			{"prenom", "Prénom"},
			{"mention_nom", "Mention"},
			{"niveau_nom", "Niveau"},
			{"parcours_nom", "Parcours"},
			{"category_nom", "Catégorie"},
		},
		Searchable: []string{"nom", "prenom", "matricule"},
		Filters:    []string{"mention_nom", "niveau_nom"},
		Refs: []Ref{
			{Field: "mention", As: "mention_nom", Resource: "mentions", Display: []string{"nom_mention"}},
			{Field: "niveau", As: "niveau_nom", Resource: "niveau", Display: []string{"nom_niveau"}},
			{Field: "parcours", As: "parcours_nom", Resource: "parcours", Display: []string{"nom_parcours"}, Placeholder: NotAvail},
			{Field: "category", As: "category_nom", Resource: "category-etudiant", Display: []string{"nom_category"}},
		},
		PageSize: DefaultPageSize,
	}
}

// StudentsIn is the students view narrowed to one category; new students get that category.
func StudentsIn(name, category string) *Schema {
	s := Students()
	s.Name = name
	s.Title = "Étudiants " + category
	s.Scope = func(row Row) bool { return row.Text("category_nom") == category }
	s.Defaults = func(siblings Collections) Record {
		for _, cat := range siblings["category-etudiant"] {
			if cat.Text("nom_category") == category {
				return Record{"category": cat["id"]}
			}
		}
		return nil
	}
	return s
}

func Professors() *Schema {
	return &Schema{
		Name:     "professors",
		Resource: "professeurs",
		Title:    "Gestion des professeurs",
		Fields: []Field{
			{Name: "nom_prof", Label: "Nom", Rules: "required"},
			{Name: "prof_email", Label: "Email", Kind: KindEmail, Rules: "required,email"},
			{Name: "specialite", Label: "Spécialité"},
			{Name: "matieres", Label: "Matières", Kind: KindRefs},
		},
		Columns: []Column{
			{"nom_prof", "Nom"},
			{"prof_email", "Email"},
			{"specialite", "Spécialité"},
			{"matieres_noms", "Matières"},
		},
		Searchable: []string{"nom_prof", "prof_email", "specialite"},
		Refs: []Ref{
			{Field: "matieres", As: "matieres_noms", Resource: "matiere", Display: []string{"nom_matiere"}},
		},
		PageSize: ProfessorsPageSize,
	}
}

func Subjects() *Schema {
	return &Schema{
		Name:     "subjects",
		Resource: "matiere",
		Title:    "Gestion des matières",
		Fields: []Field{
			{Name: "nom_matiere", Label: "Matière", Rules: "required"},
			{Name: "code", Label: "Code", Rules: "alphanum_"},
			{Name: "mention", Label: "Mention", Kind: KindRef},
			{Name: "credits", Label: "Crédits", Kind: KindNumber, Rules: "numeric"},
		},
		Columns: []Column{
			{"code", "Code"},
			{"nom_matiere", "Matière"},
			{"mention_nom", "Mention"},
			{"credits", "Crédits"},
		},
		Searchable: []string{"nom_matiere", "code"},
		Filters:    []string{"mention_nom"},
		Refs: []Ref{
			{Field: "mention", As: "mention_nom", Resource: "mentions", Display: []string{"nom_mention"}},
		},
		PageSize: DefaultPageSize,
	}
}

func Mentions() *Schema {
	return &Schema{
		Name:     "mentions",
		Resource: "mentions",
		Title:    "Mentions",
		Fields: []Field{
			{Name: "nom_mention", Label: "Mention", Rules: "required"},
			{Name: "description", Label: "Description"},
		},
		Columns:    []Column{{"nom_mention", "Mention"}, {"description", "Description"}},
		Searchable: []string{"nom_mention", "description"},
		PageSize:   DefaultPageSize,
	}
}

func Levels() *Schema {
	return &Schema{
		Name:       "levels",
		Resource:   "niveau",
		Title:      "Niveaux",
		Fields:     []Field{{Name: "nom_niveau", Label: "Niveau", Rules: "required"}},
		Columns:    []Column{{"nom_niveau", "Niveau"}},
		Searchable: []string{"nom_niveau"},
		PageSize:   DefaultPageSize,
	}
}

func Courses() *Schema {
	return &Schema{
		Name:     "courses",
		Resource: "parcours",
		Title:    "Parcours",
		Fields: []Field{
			{Name: "nom_parcours", Label: "Parcours", Rules: "required"},
			{Name: "mention", Label: "Mention", Kind: KindRef},
			{Name: "niveau", Label: "Niveau", Kind: KindRef},
			{Name: "description", Label: "Description"},
		},
		Columns: []Column{
			{"nom_parcours", "Parcours"},
			{"mention_nom", "Mention"},
			{"niveau_nom", "Niveau"},
		},
		Searchable: []string{"nom_parcours", "description"},
		Filters:    []string{"mention_nom", "niveau_nom"},
		Refs: []Ref{
			{Field: "mention", As: "mention_nom", Resource: "mentions", Display: []string{"nom_mention"}},
			{Field: "niveau", As: "niveau_nom", Resource: "niveau", Display: []string{"nom_niveau"}},
		},
		PageSize: DefaultPageSize,
	}
}

func Categories() *Schema {
	return &Schema{
		Name:       "categories",
		Resource:   "category-etudiant",
		Title:      "Catégories d'étudiants",
		Fields:     []Field{{Name: "nom_category", Label: "Catégorie", Rules: "required"}},
		Columns:    []Column{{"nom_category", "Catégorie"}},
		Searchable: []string{"nom_category"},
		PageSize:   DefaultPageSize,
	}
}

// Fees are the tariffs: the amount due per designation (tranche) and level.
func Fees() *Schema {
	return &Schema{
		Name:     "fees",
		Resource: "frais",
		Title:    "Tranches et frais",
		Fields: []Field{
			{Name: "designation", Label: "Désignation", Rules: "required"},
			{Name: "niveau", Label: "Niveau", Kind: KindRef, Rules: "required"},
			{Name: "montant", Label: "Montant", Kind: KindNumber, Rules: "required,amount"},
			{Name: "date_limite", Label: "Date limite", Kind: KindDate, Rules: "datetime=2006-01-02"},
		},
		Columns: []Column{
			{"designation", "Désignation"},
			{"niveau_nom", "Niveau"},
			{"montant", "Montant"},
			{"date_limite", "Date limite"},
		},
		Searchable: []string{"designation"},
		Filters:    []string{"niveau_nom"},
		Refs: []Ref{
			{Field: "niveau", As: "niveau_nom", Resource: "niveau", Display: []string{"nom_niveau"}},
		},
		PageSize: DefaultPageSize,
	}
}

func Payments() *Schema {
	return &Schema{
		Name:     "payments",
		Resource: "paiements",
		Title:    "Paiements",
		Fields: []Field{
			{Name: "etudiant", Label: "Étudiant", Kind: KindRef, Rules: "required"},
			{Name: "designation", Label: "Tranche", Rules: "required"},
			{Name: "montant", Label: "Montant", Kind: KindNumber, Rules: "required,amount"},
			{Name: "date", Label: "Date", Kind: KindDate, Rules: "required,datetime=2006-01-02"},
			{Name: "reference", Label: "Référence", Rules: "required"},
		},
		Columns: []Column{
			{"date", "Date"},
			{"reference", "Référence"},
			{"etudiant_nom", "Étudiant"},
			{"designation", "Tranche"},
			{"montant", "Montant"},
		},
		Searchable: []string{"etudiant_nom", "reference", "designation"},
		Filters:    []string{"designation"},
		DateField:  "date",
		SumFields:  []string{"montant"},
		Refs: []Ref{
			{Field: "etudiant", As: "etudiant_nom", Resource: "etudiants", Display: []string{"nom", "prenom"}, Placeholder: NotAvail},
		},
		Derivations: []Derivation{
			{Target: "montant", On: []string{"designation", "etudiant"}, Needs: []string{"frais", "etudiants"}, Derive: tariffAmount},
		},
		Unique: &UniqueRule{
			Fields: []string{"etudiant", "designation"},
			Field:  "designation",
			Message: func(draft Record) string {
				return fmt.Sprintf("Ce %s a déjà été payé par cet étudiant.", draft.Text("designation"))
			},
		},
		Defaults: func(siblings Collections) Record {
			rec := Record{"date": Today()}
			if fees := siblings["frais"]; len(fees) > 0 {
				rec["designation"] = fees[0]["designation"]
			}
			return rec
		},
		PageSize: DefaultPageSize,
	}
}

func Users() *Schema {
	return &Schema{
		Name:     "users",
		Resource: "users",
		Title:    "Utilisateurs",
		Fields: []Field{
			{Name: "username", Label: "Nom d'utilisateur", Rules: "required,alphanum_"},
			{Name: "email", Label: "Email", Kind: KindEmail, Rules: "required,email"},
			{Name: "first_name", Label: "Prénom"},
			{Name: "last_name", Label: "Nom"},
			{Name: "role", Label: "Rôle", Rules: "required,oneof=admin comptable"},
		},
		Columns: []Column{
			{"username", "Utilisateur"},
			{"email", "Email"},
			{"last_name", "Nom"},
			{"role", "Rôle"},
		},
		Searchable: []string{"username", "email", "first_name", "last_name"},
		Filters:    []string{"role"},
		PageSize:   DefaultPageSize,
	}
}

// tariffAmount is the amount of the tariff matching (designation, student level).
func tariffAmount(draft Record, siblings Collections) (interface{}, bool) {
	designation := draft.Text("designation")
	if designation == "" {
		return nil, false
	}
	student, ok := Find(siblings["etudiants"], draft.Text("etudiant"))
	if !ok {
		return nil, false
	}
	level := student.Text("niveau")
	for _, fee := range siblings["frais"] {
		if fee.Text("designation") == designation && fee.Text("niveau") == level {
			return fee["montant"], true
		}
	}
	return nil, false
}
