// Package decl renders a Catalog's classes and protocols as Objective-C-ish
// declaration text, the way @interface/@protocol blocks would read in a
// header. It's a thin, best-effort translator: it exists so a caller has
// something human-readable to print, not as a faithful compiler frontend.
package decl

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/coredump-labs/objcmeta/objc"
)

// Options controls how much detail Class/Protocol rendering includes.
type Options struct {
	// Verbose includes decoded method signatures instead of just names.
	Verbose bool
	// Addrs includes the resolved implementation address as a trailing
	// comment on each method.
	Addrs bool
}

// Catalog renders every protocol followed by every class, in the order the
// parser discovered them. Protocols are listed first because a class's
// declaration may reference them.
func Catalog(cat *objc.Catalog, opt Options) string {
	var b strings.Builder
	for _, p := range cat.Protocols() {
		b.WriteString(Protocol(p, opt))
		b.WriteString("\n")
	}
	for _, c := range cat.Classes() {
		b.WriteString(Class(c, opt))
		b.WriteString("\n")
	}
	return b.String()
}

// Class renders a single @interface block.
func Class(c *objc.Class, opt Options) string {
	var b strings.Builder

	super := ""
	if c.Superclass != nil {
		super = " : " + c.Superclass.Name
	}
	protos := protocolList(c.Protocols)
	fmt.Fprintf(&b, "@interface %s%s%s\n", c.Name, super, protos)

	if len(c.IVars) > 0 {
		b.WriteString("{\n")
		tw := tabwriter.NewWriter(&b, 0, 4, 1, ' ', 0)
		for _, iv := range c.IVars {
			typ := iv.Type
			if dt, ok := iv.DecodedType(); ok {
				typ = dt.String()
			}
			fmt.Fprintf(tw, "\t%s\t%s;\n", typ, iv.Name)
		}
		tw.Flush()
		b.WriteString("}\n")
	}

	for _, p := range c.Properties {
		fmt.Fprintf(&b, "@property %s;\n", propertyDecl(p))
	}
	for _, m := range c.ClassMethods {
		fmt.Fprintf(&b, "+ %s\n", methodDecl(m, opt))
	}
	for _, m := range c.InstanceMethods {
		fmt.Fprintf(&b, "- %s\n", methodDecl(m, opt))
	}
	b.WriteString("@end\n")
	return b.String()
}

// Protocol renders a single @protocol block.
func Protocol(p *objc.Protocol, opt Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "@protocol %s%s\n", p.Name, protocolList(p.Protocols))
	for _, m := range p.RequiredMethods {
		prefix := "-"
		if !m.IsInstance {
			prefix = "+"
		}
		fmt.Fprintf(&b, "%s %s\n", prefix, methodDecl(m, opt))
	}
	if len(p.OptionalMethods) > 0 {
		b.WriteString("@optional\n")
		for _, m := range p.OptionalMethods {
			prefix := "-"
			if !m.IsInstance {
				prefix = "+"
			}
			fmt.Fprintf(&b, "%s %s\n", prefix, methodDecl(m, opt))
		}
	}
	for _, p := range p.Properties {
		fmt.Fprintf(&b, "@property %s;\n", propertyDecl(p))
	}
	b.WriteString("@end\n")
	return b.String()
}

func protocolList(protos []*objc.Protocol) string {
	if len(protos) == 0 {
		return ""
	}
	names := make([]string, len(protos))
	for i, p := range protos {
		names[i] = p.Name
	}
	return " <" + strings.Join(names, ", ") + ">"
}

func propertyDecl(p objc.Property) string {
	return fmt.Sprintf("%s /* %s */", p.Name, p.Attributes)
}

func methodDecl(m objc.Method, opt Options) string {
	var sig string
	if opt.Verbose {
		ret, params, err := m.Prototype()
		if err != nil {
			sig = m.Name
		} else {
			sig = renderSelector(m.Name, ret, params)
		}
	} else {
		sig = m.Name
	}
	if opt.Addrs && m.Address != 0 {
		sig += fmt.Sprintf(" // %#x", m.Address)
	}
	return sig + ";"
}

// renderSelector splits a selector on ':' and interleaves each parameter
// type, skipping the implicit leading self/_cmd pair every method encoding
// carries.
func renderSelector(name string, ret *objc.Type, params []*objc.Type) string {
	if len(params) >= 2 {
		params = params[2:] // drop self, _cmd
	}
	parts := strings.Split(name, ":")
	hasArgs := strings.Contains(name, ":")
	if !hasArgs {
		return fmt.Sprintf("(%s)%s", ret.String(), name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "(%s)", ret.String())
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i < len(params) {
			fmt.Fprintf(&b, "%s:(%s)arg%d ", part, params[i].String(), i)
		} else {
			fmt.Fprintf(&b, "%s ", part)
		}
	}
	return strings.TrimSpace(b.String())
}
