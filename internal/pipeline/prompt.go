package pipeline

import "strings"

// DefaultPromptTemplate is the Spanish extraction instruction. {context} receives
// the retrieved chunks and {question} the full document text.
const DefaultPromptTemplate = `
Eres un asistente experto en extraer información de documentos legales. Organiza la información exclusivamente en las categorías solicitadas. Asegúrate de no mezclar información entre secciones.

1. **Criterios de adjudicación**:
   - Lista únicamente los criterios utilizados para adjudicar el contrato. Incluye subcriterios, puntajes, ponderaciones y criterios de desempate, si están presentes.
   - No incluyas información sobre solvencia o condiciones especiales.

2. **Criterios de solvencia**:
   - **Económica**: Detalla los requisitos financieros (capital, ingresos, etc.).
   - **Técnica**: Describe los requisitos de experiencia, proyectos similares o habilidades técnicas.
   - **Profesional**: Enumera licencias, certificaciones o cualificaciones profesionales necesarias.
   - Si no hay información de solvencia, escribe: "No existen criterios de solvencia en el documento".

3. **Condiciones especiales de ejecución**:
   - **Social**: Igualdad, inclusión o empleo de personas desfavorecidas.
   - **Ética**: Comercio justo, políticas anticorrupción.
   - **Medioambiental**: Sostenibilidad o eficiencia energética.
   - **Otro**: Cualquier condición no incluida en las anteriores.
   - Si no hay condiciones especiales, escribe: "No hay condiciones especiales de ejecución en el documento".

**Reglas**:
- Cada sección debe contener solo la información solicitada.
- Si un criterio o condición no está explícito en el documento, indícalo claramente.
- No incluyas información duplicada ni mezcles secciones.

**Formato**:
- Usa texto literal del documento.
- Organiza las respuestas con encabezados claros para cada categoría.

Contexto: {context}

Pregunta: {question}
`

// RenderPrompt fills the {context} and {question} placeholders in a single pass,
// so placeholder-looking text inside the document is left untouched.
func RenderPrompt(template string, contextChunks []string, question string) string {
	if template == "" {
		template = DefaultPromptTemplate
	}
	r := strings.NewReplacer(
		"{context}", strings.Join(contextChunks, "\n\n"),
		"{question}", question,
	)
	return r.Replace(template)
}
