package diag

func New(sev Severity, code Code, primary Loc, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Primary:  primary,
		Message:  msg,
		Notes:    nil,
	}
}

func NewError(code Code, primary Loc, msg string) Diagnostic {
	return New(SevError, code, primary, msg)
}

func NewWarning(code Code, primary Loc, msg string) Diagnostic {
	return New(SevWarning, code, primary, msg)
}

func NewInfo(code Code, primary Loc, msg string) Diagnostic {
	return New(SevInfo, code, primary, msg)
}

func (d Diagnostic) WithNote(loc Loc, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Loc: loc, Msg: msg})
	return d
}
