package pipeline

import (
	"fmt"
	"strings"
	"testing"

	"pliego-extract-go/internal/model"

	"github.com/stretchr/testify/assert"
)

var sampleSections = map[string]string{
	HeaderCriteriosAdjudicacion: "Precio 60 puntos.\nCalidad técnica 40 puntos.",
	HeaderCriteriosSolvencia:    "Económica volumen anual de negocios superior a 1.000.000 euros.",
	HeaderCondicionesEspeciales: "Social contratación de personas desfavorecidas.",
}

func categoriesFor(sections map[string]string) model.Categories {
	return model.Categories{
		CriteriosAdjudicacion: sections[HeaderCriteriosAdjudicacion],
		CriteriosSolvencia:    sections[HeaderCriteriosSolvencia],
		CondicionesEspeciales: sections[HeaderCondicionesEspeciales],
	}
}

func TestSplitter_RoundTripInAnyOrder(t *testing.T) {
	orders := [][]string{
		{HeaderCriteriosAdjudicacion, HeaderCriteriosSolvencia, HeaderCondicionesEspeciales},
		{HeaderCondicionesEspeciales, HeaderCriteriosAdjudicacion, HeaderCriteriosSolvencia},
		{HeaderCriteriosSolvencia, HeaderCondicionesEspeciales, HeaderCriteriosAdjudicacion},
	}
	for _, sanitizeFirst := range []bool{false, true} {
		s := NewSplitter(sanitizeFirst)
		for _, order := range orders {
			var b strings.Builder
			for _, h := range order {
				fmt.Fprintf(&b, "### %s\n%s\n\n", h, sampleSections[h])
			}
			assert.Equal(t, categoriesFor(sampleSections), s.Split(b.String()),
				"sanitizeFirst=%v order=%v", sanitizeFirst, order)
		}
	}
}

func TestSplitter_Idempotent(t *testing.T) {
	s := NewSplitter(false)
	first := s.Split("1. **Criterios de adjudicación**:\n   - Precio: 60 puntos (fórmula).\n" +
		"2. **Criterios de solvencia**:\n   - **Técnica**: tres contratos similares.\n")

	again := s.Split("### " + HeaderCriteriosAdjudicacion + "\n" + first.CriteriosAdjudicacion)
	assert.Equal(t, first.CriteriosAdjudicacion, again.CriteriosAdjudicacion)
	again = s.Split("### " + HeaderCriteriosSolvencia + "\n" + first.CriteriosSolvencia)
	assert.Equal(t, first.CriteriosSolvencia, again.CriteriosSolvencia)
}

func TestSplitter_MarkdownDecorations(t *testing.T) {
	answer := "Aquí está la información:\n\n" +
		"1. **Criterios de adjudicación**:\n   - Precio: 60 puntos.\n" +
		"2. **Criterios de solvencia**:\n   - **Económica**: 100.000 euros.\n" +
		"3. **Condiciones especiales de ejecución**:\n   - No hay condiciones especiales de ejecución en el documento."
	got := NewSplitter(false).Split(answer)
	assert.Equal(t, "- Precio 60 puntos.", got.CriteriosAdjudicacion)
	assert.Equal(t, "- Económica 100.000 euros.", got.CriteriosSolvencia)
	assert.Equal(t, "- No hay condiciones especiales de ejecución en el documento.", got.CondicionesEspeciales)
}

func TestSplitter_HeaderWithInlineValue(t *testing.T) {
	got := NewSplitter(false).Split("### Criterios de solvencia: No existen criterios de solvencia en el documento")
	assert.Equal(t, "No existen criterios de solvencia en el documento", got.CriteriosSolvencia)
}

func TestSplitter_NumberedBoldHeaders(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   model.Categories
	}{
		{
			name: "inline value after numbered bold header",
			answer: "1. **Criterios de adjudicación**: Precio 60 puntos\n" +
				"2. **Criterios de solvencia**: Económica 1000 euros\n",
			want: model.Categories{
				CriteriosAdjudicacion: "Precio 60 puntos",
				CriteriosSolvencia:    "Económica 1000 euros",
			},
		},
		{
			name:   "bold around the list number",
			answer: "**1. Criterios de adjudicación**\n- Precio\n**2. Criterios de solvencia**\n- Económica\n",
			want: model.Categories{
				CriteriosAdjudicacion: "- Precio",
				CriteriosSolvencia:    "- Económica",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewSplitter(false).Split(tt.answer))
		})
	}
}

func TestSplitter_SentenceStartingWithHeaderWordsIsNotAHeader(t *testing.T) {
	answer := "### Criterios de adjudicación\nPrecio.\nCriterios de solvencia exigidos en otro anexo.\n"
	got := NewSplitter(false).Split(answer)
	assert.Equal(t, "Precio.\nCriterios de solvencia exigidos en otro anexo.", got.CriteriosAdjudicacion)
	assert.Empty(t, got.CriteriosSolvencia)
}

func TestSplitter_MissingAndDuplicateSections(t *testing.T) {
	s := NewSplitter(false)
	assert.Equal(t, model.Categories{}, s.Split(""))
	assert.Equal(t, model.Categories{}, s.Split("El documento no contiene información relevante."))

	got := s.Split("### Criterios de solvencia\nprimera\n### Criterios de solvencia\nsegunda")
	assert.Equal(t, "segunda", got.CriteriosSolvencia)
	assert.Empty(t, got.CriteriosAdjudicacion)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Precio 60 puntos, fórmula lineal.", Sanitize("**Precio**: 60 puntos, (fórmula) lineal."))
	assert.Equal(t, "a-b_c", Sanitize("a-b_c#"))
}
