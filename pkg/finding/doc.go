// Package finding provides the record type that plugin tasks produce and
// the result store, reporter and output sinks consume.
//
// A Finding is built once by task code and never mutated after it has been
// appended to the store:
//
//	f := finding.Finding{
//	    OriginURL:   page,
//	    Description: "The mail account \"a@example.com\" was found in " + page,
//	    Plugin:      "mailfinder",
//	}
//	store.Append("mails", "mails", f)
//
// Findings that carry a Severity are vulnerabilities; the rest are
// informational.
package finding
