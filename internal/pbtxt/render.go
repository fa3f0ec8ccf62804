// Package pbtxt renders a descriptor document into the serving
// runtime's nested protobuf text format. The renderer is a pure
// function of the document: field order is insertion order, and
// positional field aliasing is driven by the FieldRole assigned when
// the document was built, never by matching on field names.
package pbtxt

import (
	"fmt"
	"strings"

	"github.com/pipeforge/pipeforge/internal/descriptor"
)

// Options controls rendering.
type Options struct {
	// Indent is the number of columns per nesting level. Zero means the
	// default of two.
	Indent int
}

func (o Options) indent() int {
	if o.Indent <= 0 {
		return 2
	}
	return o.Indent
}

// Marshal renders a model descriptor, banner included.
func Marshal(m *descriptor.ModelDescriptor) string {
	return MarshalWithOptions(m, Options{})
}

// MarshalWithOptions renders a model descriptor with explicit options.
func MarshalWithOptions(m *descriptor.ModelDescriptor, opts Options) string {
	return banner(m) + Render(Document(m), opts)
}

// banner is the fixed auto-generated-file header naming the model and
// its engine or platform.
func banner(m *descriptor.ModelDescriptor) string {
	engine := m.Engine.Backend()
	if m.Engine == descriptor.EngineEnsemble {
		engine = "ensemble"
	}
	return fmt.Sprintf(`# Model deployment descriptor (protobuf text format).
# Auto generated by pipeforge. Do not edit.
# Model: %s.
# Engine: %s.
# ------------------------------

`, m.Name, engine)
}

// Render pretty-prints a document block at the top level.
func Render(b *descriptor.Block, opts Options) string {
	var sb strings.Builder
	renderFields(&sb, b, 0, opts.indent())
	return sb.String()
}

func renderFields(sb *strings.Builder, b *descriptor.Block, indent, tab int) {
	for _, f := range b.Fields {
		key := f.EmittedName()
		switch v := f.Value.(type) {
		case descriptor.String:
			fmt.Fprintf(sb, "%s%s: %q\n", pad(indent), key, string(v))
		case descriptor.Int:
			fmt.Fprintf(sb, "%s%s: %d\n", pad(indent), key, int64(v))
		case descriptor.Token:
			fmt.Fprintf(sb, "%s%s: %s\n", pad(indent), key, v)
		case descriptor.List:
			renderList(sb, key, v, indent, tab)
		case *descriptor.Block:
			fmt.Fprintf(sb, "%s%s {\n", pad(indent), key)
			renderFields(sb, v, indent+tab, tab)
			fmt.Fprintf(sb, "%s}\n", pad(indent))
		}
	}
}

func renderList(sb *strings.Builder, key string, list descriptor.List, indent, tab int) {
	fmt.Fprintf(sb, "%s%s [\n", pad(indent), key)
	for i, elem := range list {
		last := i == len(list)-1
		switch v := elem.(type) {
		case descriptor.String:
			fmt.Fprintf(sb, "%s%q\n", pad(indent+tab), string(v))
		case descriptor.Int:
			fmt.Fprintf(sb, "%s%d\n", pad(indent+tab), int64(v))
		case descriptor.Token:
			fmt.Fprintf(sb, "%s%s\n", pad(indent+tab), v)
		case *descriptor.Block:
			fmt.Fprintf(sb, "%s{\n", pad(indent+tab))
			renderFields(sb, v, indent+2*tab, tab)
			if last {
				fmt.Fprintf(sb, "%s}\n", pad(indent+tab))
			} else {
				fmt.Fprintf(sb, "%s},\n", pad(indent+tab))
			}
		}
	}
	fmt.Fprintf(sb, "%s]\n", pad(indent))
}

func pad(n int) string {
	return strings.Repeat(" ", n)
}
