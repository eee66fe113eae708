package cultivation

// PhaseInfo is the display metadata of a phase
type PhaseInfo struct {
	Label string
	Color string
	Icon  string
}

var phaseInfo = map[Phase]PhaseInfo{
	PhaseMaintenance: {Label: "Manutenção", Color: "purple", Icon: "sprout"},
	PhaseCloning:     {Label: "Clonagem", Color: "cyan", Icon: "scissors"},
	PhaseVega:        {Label: "Vegetativo", Color: "green", Icon: "leaf"},
	PhaseFlora:       {Label: "Floração", Color: "orange", Icon: "flower"},
	PhaseDrying:      {Label: "Secagem", Color: "amber", Icon: "wind"},
	PhaseInactive:    {Label: "Inativa", Color: "gray", Icon: "circle-off"},
}

// Info returns the display metadata of p. Unknown tags render as inactive.
func Info(p Phase) PhaseInfo {
	if info, ok := phaseInfo[p]; ok {
		return info
	}
	return phaseInfo[PhaseInactive]
}
