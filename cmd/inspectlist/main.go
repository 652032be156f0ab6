package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"charattach/internal/attachlist"
	"charattach/internal/bmd"
	"charattach/internal/skeleton"
)

func main() {
	skelPath := flag.String("skeleton", "", "BMD model whose joint table is printed and checked against the lists")
	flag.Parse()

	var skel *skeleton.Default
	if *skelPath != "" {
		model, err := bmd.Parse(*skelPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Parse error %s: %v\n", *skelPath, err)
			os.Exit(1)
		}
		skel, err = skeleton.FromBMD(model.Bones)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Skeleton error %s: %v\n", *skelPath, err)
			os.Exit(1)
		}
		fmt.Printf("\n=== %s (meshes=%d joints=%d) ===\n", *skelPath, len(model.Meshes), skel.JointCount())
		for id := 0; id < skel.JointCount(); id++ {
			t := skel.DefaultAbsolute(id).T
			fmt.Printf("  [%3d] %-24s parent=%3d  pos=(%.3f, %.3f, %.3f)\n",
				id, skel.JointName(id), skel.ParentID(id), t[0], t[1], t[2])
		}
	}

	for _, arg := range flag.Args() {
		descs, err := attachlist.Parse(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Parse error %s: %v\n", arg, err)
			continue
		}
		fmt.Printf("\n=== %s (attachments=%d) ===\n", arg, len(descs))
		for i, d := range descs {
			joint := d.BoneName
			if d.Type == "CA_PROW" {
				joint = d.RowJointName
			}
			missing := ""
			if skel != nil && joint != "" && skel.JointIDByName(joint) < 0 {
				missing = "  MISSING JOINT"
			}
			fmt.Printf("  [%3d] %-9s %-24s joint=%-20s%s\n", i, d.Type, d.Name, joint, missing)
			if d.Binding != "" {
				fmt.Printf("        binding=%s\n", d.Binding)
			}
			if d.Sim.IsActive() {
				fmt.Printf("        sim=%s fps=%.0f mass=%.2f stiffness=%.2f damping=%.2f proxies=[%s]\n",
					d.Sim.ClampType, d.Sim.FPS, d.Sim.Mass, d.Sim.Stiffness, d.Sim.Damping,
					strings.Join(d.Sim.ProxyNames, ","))
			}
			if d.HasRow {
				fmt.Printf("        row=%s cone=%.1f relax=%d\n", d.Row.ClampMode, d.Row.ConeAngle, d.Row.RelaxLoops)
			}
		}
	}
}
