// Package dmf2mod converts music tracker modules between formats. Its
// center is a conversion core: a DMF importer, a format-agnostic song
// container and state timeline, a DMF-to-MOD sample mapper, and a MOD
// emitter. Command-line parsing, file I/O, and any interactive UI are left
// to callers; this package takes byte streams and typed options and
// returns byte streams and a Status.
package dmf2mod

import "fmt"

// Format identifies one of the module formats the core knows about.
type Format int

const (
	FormatDMF Format = iota
	FormatMOD
)

func (f Format) String() string {
	switch f {
	case FormatDMF:
		return "DMF"
	case FormatMOD:
		return "MOD"
	default:
		return "unknown"
	}
}

// Module is implemented by DMFModule and MODModule. It exists so the CLI
// front end can hold either kind behind one interface, resolved at
// conversion time by Create below rather than a string-keyed registry.
type Module interface {
	Format() Format
}

// Create returns a zero-value module of the requested format.
func Create(format Format) (Module, error) {
	switch format {
	case FormatDMF:
		return NewDMFModule(), nil
	case FormatMOD:
		return NewMODModule(), nil
	default:
		return nil, newError(CategoryNone, CodeUnsupportedInputType, "unknown format %d", format)
	}
}

// Import decodes bytes into module, which must have been created with the
// matching Format.
func Import(module Module, data []byte) (*Status, error) {
	st := &Status{}
	switch m := module.(type) {
	case *DMFModule:
		err := importDMF(m, data, st)
		if err != nil {
			st.SetError(err)
			return st, err
		}
		return st, nil
	default:
		err := newError(CategoryImport, CodeUnsupportedInputType, "cannot import into a %T", module)
		st.SetError(err)
		return st, err
	}
}

// Convert produces a new module in targetFormat from module. Converting a
// module to its own format is rejected immediately.
func Convert(module Module, targetFormat Format, options ConversionOptions) (Module, *Status, error) {
	st := &Status{}
	if module.Format() == targetFormat {
		err := newError(CategoryConvert, CodeInvalidArgument, "cannot convert a %s module to %s", module.Format(), targetFormat)
		st.SetError(err)
		return nil, st, err
	}

	dmfMod, ok := module.(*DMFModule)
	if !ok || targetFormat != FormatMOD {
		err := newError(CategoryConvert, CodeUnsupportedInputType, "conversion %s -> %s is not supported", module.Format(), targetFormat)
		st.SetError(err)
		return nil, st, err
	}

	opts := options.WithDefaults()
	modMod, err := convertDMFToMOD(dmfMod, opts, st)
	if err != nil {
		st.SetError(err)
		return nil, st, err
	}
	return modMod, st, nil
}

// Export serializes module to bytes.
func Export(module Module) ([]byte, *Status, error) {
	st := &Status{}
	switch m := module.(type) {
	case *MODModule:
		data, err := exportMOD(m, st)
		if err != nil {
			st.SetError(err)
			return nil, st, err
		}
		return data, st, nil
	default:
		err := newError(CategoryExport, CodeUnsupportedInputType, "cannot export a %T", module)
		st.SetError(err)
		return nil, st, err
	}
}

// StatusString renders a Status the way a caller is expected to print it.
func StatusString(st *Status) string {
	if st == nil {
		return ""
	}
	out := ""
	if st.Err != nil {
		out += fmt.Sprintf("error: %v\n", st.Err)
	}
	for _, w := range st.Warnings {
		out += fmt.Sprintf("warning: %s\n", w)
	}
	return out
}
