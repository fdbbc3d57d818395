package testutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"testing"

	"github.com/esdes/campus/core/entity"
	inmemdb "github.com/esdes/campus/storage/inmem"
)

// ID returns a record id the way the API encodes it.
func ID(n int) json.Number { return json.Number(strconv.Itoa(n)) }

// NewStudents builds n students (matricule E001..), all in level 1 and category 1.
func NewStudents(n int) []entity.Record {
	recs := make([]entity.Record, 0, n)
	for i := 1; i <= n; i++ {
		recs = append(recs, entity.Record{
			"id":        ID(i),
			"matricule": fmt.Sprintf("E%03d", i),
			"nom":       fmt.Sprintf("Nom%d", i),
			"prenom":    fmt.Sprintf("Prenom%d", i),
			"mention":   ID(1),
			"niveau":    ID(1),
			"category":  ID(1),
		})
	}
	return recs
}

// SeedCampus fills gw with a small campus: 2 mentions, 2 levels, 2 categories,
// 3 students, tariffs and one payment.
func SeedCampus(t *testing.T, gw *inmemdb.Gateway) {
	t.Helper()

	gw.Seed("mentions",
		entity.Record{"id": ID(1), "nom_mention": "Informatique"},
		entity.Record{"id": ID(2), "nom_mention": "Gestion"},
	)
	gw.Seed("niveau",
		entity.Record{"id": ID(1), "nom_niveau": "L1"},
		entity.Record{"id": ID(2), "nom_niveau": "L2"},
	)
	gw.Seed("parcours",
		entity.Record{"id": ID(1), "nom_parcours": "Développement Web", "mention": ID(1), "niveau": ID(1)},
	)
	gw.Seed("category-etudiant",
		entity.Record{"id": ID(1), "nom_category": entity.CategoryPresentiel},
		entity.Record{"id": ID(2), "nom_category": entity.CategoryDistance},
	)
	gw.Seed("etudiants",
		entity.Record{"id": ID(1), "matricule": "E001", "nom": "Rakoto", "prenom": "Alice", "mention": ID(1), "niveau": ID(1), "category": ID(1)},
		entity.Record{"id": ID(2), "matricule": "E002", "nom": "Rabe", "prenom": "Boby", "mention": ID(2), "niveau": ID(2), "category": ID(1)},
		entity.Record{"id": ID(3), "matricule": "E003", "nom": "Randria", "prenom": "Arishu", "mention": ID(1), "niveau": ID(2), "category": ID(2)},
	)
	gw.Seed("frais",
		entity.Record{"id": ID(1), "designation": "Tranche 1", "niveau": ID(1), "montant": json.Number("150000"), "date_limite": "2025-01-15"},
		entity.Record{"id": ID(2), "designation": "Tranche 1", "niveau": ID(2), "montant": json.Number("200000"), "date_limite": "2025-01-15"},
		entity.Record{"id": ID(3), "designation": "Tranche 2", "niveau": ID(1), "montant": json.Number("120000"), "date_limite": "2025-03-15"},
		entity.Record{"id": ID(4), "designation": "Tranche 2", "niveau": ID(2), "montant": json.Number("180000"), "date_limite": "2025-03-15"},
	)
	gw.Seed("paiements",
		entity.Record{"id": ID(1), "etudiant": ID(1), "designation": "Tranche 1", "montant": json.Number("150000"), "date": "2025-01-04", "reference": "REC-001"},
	)
}
