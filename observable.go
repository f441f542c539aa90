package cres

// ObservableDefinition controls how events are projected onto EventViews.
type ObservableDefinition struct {
	// Jets clusters partons and hadrons.
	Jets JetDefinition `yaml:"jets"`
	// LeptonDef, if set, clusters light leptons and photons into dressed
	// leptons. Otherwise they are kept individually.
	LeptonDef *JetDefinition `yaml:"leptons,omitempty"`
	// IncludeNeutrinos keeps neutrinos in the view.
	IncludeNeutrinos bool `yaml:"include_neutrinos"`
}

func (d ObservableDefinition) validate() error {
	if err := d.Jets.validate("Observables.Jets"); err != nil {
		return err
	}
	if d.LeptonDef != nil {
		return d.LeptonDef.validate("Observables.LeptonDef")
	}
	return nil
}

// BuildView clusters the final-state particles of ev into jets (and dressed
// leptons, if configured) and groups the resulting objects by type. An event
// without particles yields an empty view.
func BuildView(ev *Event, def ObservableDefinition) *EventView {
	var (
		toJets    []FourVector
		toLeptons []FourVector
		objects   = make([]Particle, 0, len(ev.Particles))
	)
	for _, p := range ev.Particles {
		switch {
		case p.ID.IsParton() || p.ID.IsHadron():
			toJets = append(toJets, p.P)
		case def.LeptonDef != nil && (p.ID.IsLightLepton() || p.ID.IsPhoton()):
			toLeptons = append(toLeptons, p.P)
		case p.ID.IsNeutrino() && !def.IncludeNeutrinos:
		default:
			objects = append(objects, p)
		}
	}

	for _, j := range ClusterJets(toJets, def.Jets) {
		objects = append(objects, Particle{ID: PIDJet, P: j})
	}
	if def.LeptonDef != nil {
		for _, l := range ClusterJets(toLeptons, *def.LeptonDef) {
			objects = append(objects, Particle{ID: PIDDressedLepton, P: l})
		}
	}
	return NewEventView(objects)
}
