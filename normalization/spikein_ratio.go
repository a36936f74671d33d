package normalization

import (
	"fmt"
	"strings"

	"github.com/CChahrour/SeqNado/counts"
)

// RatioPair holds the spike-in counts of an IP sample and of its control.
type RatioPair struct {
	IP, Control counts.SpikeInCounts
}

func (p RatioPair) values() string {
	return fmt.Sprintf("spikein_reads_ip=%d, spikein_reads_control=%d, reference_reads_control=%d",
		p.IP.SpikeIn, p.Control.SpikeIn, p.Control.Reference)
}

// SpikeInRatioFactor returns the input-normalized spike-in factor of an IP
// sample:
//
//   (S_ctrl * 1e7) / (S_ip * R_ctrl)
//
// which is (R_ip/S_ip) / (R_ctrl/S_ctrl) * (1e7/R_ip) with R_ip cancelled.
func SpikeInRatioFactor(p RatioPair) (float64, error) {
	values := p.values()
	if p.IP.SpikeIn <= 0 {
		return 0, dataError(values, "IP sample has no spike-in reads")
	}
	if p.Control.Reference <= 0 {
		return 0, dataError(values, "control sample has no reference reads")
	}
	f := (float64(p.Control.SpikeIn) * 1e7) / (float64(p.IP.SpikeIn) * float64(p.Control.Reference))
	return checkFactor(f, values)
}

// SpikeInRatioMerged sums S_ctrl, S_ip and R_ctrl independently over the pairs
// and applies SpikeInRatioFactor to the sums. A control shared by several IP
// samples is counted once per pair.
func SpikeInRatioMerged(pairs []RatioPair) (float64, error) {
	var pooled RatioPair
	for _, p := range pairs {
		pooled.IP = pooled.IP.Add(p.IP)
		pooled.Control = pooled.Control.Add(p.Control)
	}
	return SpikeInRatioFactor(pooled)
}

// sampleRole tells whether a sample is normalized as an IP or is a control.
type sampleRole int

const (
	roleIP sampleRole = iota
	roleControl
)

// role classifies id under the design's IP→control pairing. A sample with an
// entry in Controls is an IP sample; a sample that is only listed as someone's
// control is a control. Any other sample is an IP sample without a control.
func (d *Design) role(id counts.SampleID) sampleRole {
	if _, ok := d.Controls[id]; ok {
		return roleIP
	}
	if d.isControl(id) {
		return roleControl
	}
	return roleIP
}

// control returns the single control paired with the IP sample ip.
func (d *Design) control(ip counts.SampleID) (counts.SampleID, error) {
	ctrls := d.Controls[ip]
	switch len(ctrls) {
	case 0:
		return "", dataError(fmt.Sprintf("sample=%s, control=<none>", ip), "IP sample has no assigned control")
	case 1:
		if ctrls[0] == ip {
			return "", configError(fmt.Sprintf("sample=%s, control=%s", ip, ctrls[0]), "sample is its own control")
		}
		return ctrls[0], nil
	}
	names := make([]string, len(ctrls))
	for i, c := range ctrls {
		names[i] = string(c)
	}
	return "", configError(fmt.Sprintf("sample=%s, controls=%s", ip, strings.Join(names, ",")),
		"IP sample has more than one control")
}

func (in *Inputs) ratioPair(ip counts.SampleID) (RatioPair, error) {
	var (
		p   RatioPair
		err error
	)
	if p.IP, err = in.spikeIn(ip); err != nil {
		return p, err
	}
	ctrl, err := in.Design.control(ip)
	if err != nil {
		return p, err
	}
	if p.Control, err = in.spikeIn(ctrl); err != nil {
		return p, err
	}
	return p, nil
}

type spikeInRatioPolicy struct{}

func (spikeInRatioPolicy) Method() Method { return SpikeInRatio }

func (spikeInRatioPolicy) PerSample(in *Inputs, sample counts.SampleID) (float64, error) {
	if in.Design.role(sample) == roleControl {
		// Controls are never normalized against themselves.
		return 1, nil
	}
	p, err := in.ratioPair(sample)
	if err != nil {
		return 0, err
	}
	return SpikeInRatioFactor(p)
}

func (spikeInRatioPolicy) Merged(in *Inputs, members []counts.SampleID, _ map[counts.SampleID]float64) (float64, error) {
	var ips, ctrls []string
	for _, id := range members {
		if in.Design.role(id) == roleControl {
			ctrls = append(ctrls, string(id))
		} else {
			ips = append(ips, string(id))
		}
	}
	if len(ips) == 0 {
		return 1, nil
	}
	if len(ctrls) > 0 {
		return 0, configError(fmt.Sprintf("ip=%s, controls=%s", strings.Join(ips, ","), strings.Join(ctrls, ",")),
			"group mixes IP and control samples")
	}
	pairs := make([]RatioPair, len(members))
	for i, id := range members {
		p, err := in.ratioPair(id)
		if err != nil {
			return 0, err
		}
		pairs[i] = p
	}
	return SpikeInRatioMerged(pairs)
}
